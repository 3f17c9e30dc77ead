// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bitmark-inc/exitwithstatus"

	"github.com/nextworks-it/pkgmarketd/account"
	"github.com/nextworks-it/pkgmarketd/fault"
)

const (
	identityFilename    = "pkgmarketd.identity"
	certificateFilename = "pkgmarketd.crt"
	privateKeyFilename  = "pkgmarketd.key"
)

// setup command handler
//
// commands that run to create key and certificate files; these
// commands cannot access any internal database or states or the
// configuration file
func processSetupCommand(program string, arguments []string) bool {

	command := "help"
	if len(arguments) > 0 {
		command = arguments[0]
		arguments = arguments[1:]
	}

	switch command {
	case "generate-identity", "id":
		testing := len(arguments) > 0 && "testing" == arguments[0]
		if testing {
			arguments = arguments[1:]
		}
		identityFile := getFilenameWithDirectory(arguments, identityFilename)

		if ensureFileExists(identityFile) {
			fmt.Printf("generate identity: %q error: %s\n", identityFile, fault.ErrKeyFileAlreadyExists)
			exitwithstatus.Exit(1)
		}

		key, err := account.NewPrivateKey(testing)
		if nil != err {
			fmt.Printf("generate identity: %q error: %s\n", identityFile, err)
			exitwithstatus.Exit(1)
		}

		if err := os.WriteFile(identityFile, []byte(key.String()+"\n"), 0600); nil != err {
			os.Remove(identityFile)
			fmt.Printf("generate identity: %q error: %s\n", identityFile, err)
			exitwithstatus.Exit(1)
		}

		fmt.Printf("generated identity: %q\n", identityFile)
		fmt.Printf("account: %s\n", key.Account())

	case "generate-certificate", "cert":
		certificateFile := getFilenameWithDirectory(arguments, certificateFilename)
		privateKeyFile := getFilenameWithDirectory(arguments, privateKeyFilename)

		addresses := []string{}
		if len(arguments) >= 2 {
			for _, a := range arguments[1:] {
				if "" != a {
					addresses = append(addresses, a)
				}
			}
		}

		err := makeSelfSignedCertificate("sessions", certificateFile, privateKeyFile, 0 != len(addresses), addresses)
		if nil != err {
			fmt.Printf("generate key: %q and certificate: %q error: %s\n", privateKeyFile, certificateFile, err)
			exitwithstatus.Exit(1)
		}
		fmt.Printf("generated key: %q and certificate: %q\n", privateKeyFile, certificateFile)

	case "fingerprint", "f":
		certificateFile := getFilenameWithDirectory(arguments, certificateFilename)
		certificate, err := os.ReadFile(certificateFile)
		if nil != err {
			fmt.Printf("certificate: %q error: %s\n", certificateFile, err)
			exitwithstatus.Exit(1)
		}
		fmt.Printf("fingerprint: %x\n", certificateFingerprint(certificate))

	case "start", "run":
		return false // continue processing

	case "version", "v":
		fmt.Printf("%s\n", version)

	default:
		switch command {
		case "help", "h", "?":
		case "", " ":
			fmt.Printf("error: missing command\n")
		default:
			fmt.Printf("error: no such command: %s\n", command)
		}

		fmt.Printf("usage: %s [--help] [--verbose] [--quiet] --config-file=FILE [[command|help] arguments...]", program)
		fmt.Printf("%s", `
commands:
  help                                         (h)       - display this message

  generate-identity [testing] [DIRECTORY]      (id)      - create a node signing key; print its account
  generate-certificate [DIRECTORY [HOSTS...]]  (cert)    - create a self-signed TLS key and certificate
  fingerprint [DIRECTORY]                      (f)       - SHA3-256 fingerprint of the certificate

  start                                        (run)     - just run the daemon, same as no command
  version                                      (v)       - display the version
`)
	}
	return true
}

// get the first argument as a directory and yield the expected file
// inside it, or the file in the current directory when no arguments
func getFilenameWithDirectory(arguments []string, name string) string {
	directory := "."
	if len(arguments) >= 1 && "" != arguments[0] {
		directory = arguments[0]
	}
	return filepath.Join(directory, name)
}
