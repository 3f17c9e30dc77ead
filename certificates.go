// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"crypto/tls"
	"os"
	"time"

	"github.com/bitmark-inc/certgen"
	"golang.org/x/crypto/sha3"

	"github.com/nextworks-it/pkgmarketd/fault"
)

// loadListenKeyPair - the TLS configuration of the session listener
func loadListenKeyPair(certificateFileName string, keyFileName string) (*tls.Config, error) {

	keyPair, err := tls.LoadX509KeyPair(certificateFileName, keyFileName)
	if nil != err {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{
			keyPair,
		},
	}, nil
}

// create a self-signed certificate
func makeSelfSignedCertificate(name string, certificateFileName string, privateKeyFileName string, override bool, extraHosts []string) error {

	if ensureFileExists(certificateFileName) {
		return fault.ErrCertificateFileAlreadyExists
	}

	if ensureFileExists(privateKeyFileName) {
		return fault.ErrKeyFileAlreadyExists
	}

	org := "pkgmarketd self signed cert for: " + name
	validUntil := time.Now().Add(10 * 365 * 24 * time.Hour)
	cert, key, err := certgen.NewTLSCertPair(org, validUntil, override, extraHosts)
	if nil != err {
		return err
	}

	if err = os.WriteFile(certificateFileName, cert, 0666); nil != err {
		return err
	}

	if err = os.WriteFile(privateKeyFileName, key, 0600); nil != err {
		os.Remove(certificateFileName)
		return err
	}

	return nil
}

// compute the fingerprint of a certificate
//
// openssl x509 -outform DER -in pkgmarketd.crt | sha3sum -a 256
func certificateFingerprint(certificate []byte) [32]byte {
	return sha3.Sum256(certificate)
}

// check if file exists
func ensureFileExists(name string) bool {
	_, err := os.Stat(name)
	return nil == err
}
