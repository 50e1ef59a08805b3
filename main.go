// Copyright 2025 The PetaBanjir Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/twsaputra/petabanjir/cmd"
)

var Version = "development"

func main() {
	cmd.Execute(Version)
}
