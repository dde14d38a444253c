//go:build mage

// Development tasks for the go-tokenizers project.

package main

import (
	"fmt"
	"os"
	"path"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
	"github.com/magefile/mage/target"
	"github.com/pkg/errors"
)

// Default sets default action of mage to be running the tests.
var Default = Test

// generated maps each file generated by `stringer` to the sources declaring its enums.
var generated = map[string]string{
	"types_string.go":              "truncation.go",
	"encoding/direction_string.go": "encoding/encoding.go",

	"normalizers/split_behavior_string.go":    "normalizers/split_behavior.go",
	"pretokenizers/prepend_scheme_string.go": "pretokenizers/metaspace.go",
}

// must panics if an error is passed.
func must(err error) {
	if err != nil {
		panic(err)
	}
}

// must1 panics if an error is passed, otherwise returns t.
func must1[T any](t T, err error) T {
	must(err)
	return t
}

// Generate runs `go generate` on the packages whose enum declarations changed since their
// `stringer` output was last generated.
func Generate() error {
	if _, err := sh.Output("go", "tool", "-n", "stringer"); err != nil {
		if _, err = sh.Output("which", "stringer"); err != nil {
			return errors.New("can't find `stringer`, it can usually be installed with " +
				"`go install golang.org/x/tools/cmd/stringer@latest`")
		}
	}
	pwd := must1(os.Getwd())
	for dst, src := range generated {
		modified, err := target.Path(path.Join(pwd, dst), path.Join(pwd, src))
		if err != nil {
			return errors.WithMessagef(err, "checking whether %q needs to be generated", dst)
		}
		if !modified {
			continue
		}
		pkg := "./" + path.Dir(dst)
		fmt.Printf("Generating %q\n", dst)
		if err := sh.RunV("go", "generate", pkg); err != nil {
			return errors.WithMessagef(err, "generating %q", dst)
		}
	}
	return nil
}

// Vet runs `go vet` on all packages.
func Vet() error {
	mg.Deps(Generate)
	return sh.RunV("go", "vet", "./...")
}

// Test runs all the tests, with the race detector.
func Test() error {
	mg.Deps(Generate)
	return sh.RunV("go", "test", "-race", "./...")
}

// Bench runs the encoding and decoding benchmarks of the root package.
func Bench() error {
	mg.Deps(Generate)
	return sh.RunV("go", "test", "-run=^$", "-bench=.", "-benchmem", ".")
}
