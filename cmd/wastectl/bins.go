package main

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/cleancity/wastetrack/internal/bins"
	"github.com/cleancity/wastetrack/internal/validation"
)

// binsFile is the import document:
//
//	bins:
//	  - location: Market Gate
//	    area: Sector 5
//	    capacity: large
type binsFile struct {
	Bins []bins.Input `yaml:"bins"`
}

func parseBins(r io.Reader) ([]bins.Input, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc binsFile
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("bins file is empty")
		}
		return nil, fmt.Errorf("parse bins file: %w", err)
	}
	return doc.Bins, nil
}

// validateBins reports failures keyed by 1-based entry and field.
func validateBins(inputs []bins.Input) validation.Errors {
	errs := validation.Errors{}
	for i, in := range inputs {
		_, fieldErrs := in.Normalize()
		for field, msg := range fieldErrs {
			errs.Add(fmt.Sprintf("%d.%s", i+1, field), msg)
		}
	}
	return errs
}
