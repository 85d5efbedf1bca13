package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/kovidgoyal/imager"
	"github.com/kovidgoyal/imager/filters"
)

var _ = fmt.Print

func usage() {
	fmt.Fprintln(os.Stderr, "usage: go run ./cmd/demo [-info] [-compression N] input-file [output-file [filter...]]")
	fmt.Fprintln(os.Stderr, "filters:", strings.Join(filters.Names(), ", "))
	flag.PrintDefaults()
}

func main() {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}()
	info := flag.Bool("info", false, "print the container headers and metadata of the input")
	level := flag.Int("compression", -1, "zlib level for modified PNG data")
	version := flag.Bool("version", false, "print the version and exit")
	flag.Usage = usage
	flag.Parse()
	if *version {
		fmt.Println(imager.Version)
		return
	}
	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}
	img, err := imager.Load(args[0])
	if err != nil {
		return
	}
	if *info {
		fmt.Println(img.Metadata())
		fmt.Println(img.Meta())
	}
	if len(args) == 1 {
		return
	}
	pipeline := make([]filters.Filter, 0, len(args)-2)
	for _, arg := range args[2:] {
		f, ferr := filters.Parse(arg)
		if ferr != nil {
			err = ferr
			return
		}
		pipeline = append(pipeline, f)
	}
	if err = img.Apply(pipeline...); err != nil {
		return
	}
	output_file := args[1]
	if err = img.Save(output_file, imager.PNGCompressionLevel(*level)); err == nil {
		fmt.Println("Saved to:", output_file)
	}
}
