package main

import (
	"bufio"
	"flag"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/prologkit/warren/solver"
)

var (
	inputFilename  = flag.String("input", "", "Program file (required)")
	outputFilename = flag.String("output", "", "Output file, defaults to stdout")
	factsFilename  = flag.String("facts", "", "YAML fact file to load before the program")
)

func main() {
	flag.Parse()
	log := logrus.New()
	if *inputFilename == "" {
		log.Fatal("-input is required")
	}
	s := solver.New()
	s.SetLogger(log)
	if *factsFilename != "" {
		if err := s.LoadFactsFile(*factsFilename); err != nil {
			log.Fatalf("facts: %v", err)
		}
	}
	if err := s.ConsultFile(*inputFilename); err != nil {
		log.Fatalf("consult: %v", err)
	}

	out := os.Stdout
	if *outputFilename != "" {
		f, err := os.Create(*outputFilename)
		if err != nil {
			log.Fatalf("open output: %v", err)
		}
		defer f.Close()
		out = f
	}
	w := bufio.NewWriter(out)
	if err := s.Program.Disassemble(w); err != nil {
		log.Fatalf("disassemble: %v", err)
	}
	if err := w.Flush(); err != nil {
		log.Fatalf("output: %v", err)
	}
}
