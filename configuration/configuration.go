// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package configuration - daemon configuration from a Lua file
package configuration

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bitmark-inc/logger"
)

// basic defaults (directories and files are relative to the
// "data_directory" from the configuration file)
const (
	defaultDataDirectory = "" // this will error; use "." for the same directory as the config file

	defaultIdentityFile    = "pkgmarketd.identity"
	defaultKeyFile         = "pkgmarketd.key"
	defaultCertificateFile = "pkgmarketd.crt"

	defaultLevelDBDirectory = "data"
	defaultDatabase         = "pkgmarket"

	defaultLogDirectory = "log"
	defaultLogFile      = "pkgmarketd.log"
	defaultLogCount     = 10          // number of log files retained
	defaultLogSize      = 1024 * 1024 // rotate when <logfile> exceeds this size

	defaultConnections = 32
)

// networks
const (
	Live    = "live"
	Testing = "testing"
)

// path expanded or calculated defaults
var defaultLogLevels = map[string]string{
	logger.DefaultTag: "critical",
}

// DatabaseType - where the ledger replica lives
type DatabaseType struct {
	Directory string `gluamapper:"directory" json:"directory"`
	Name      string `gluamapper:"name" json:"name"`
}

// PartyType - one directory entry
//
// Address is empty for parties this node never dials
type PartyType struct {
	Name    string `gluamapper:"name" json:"name"`
	Account string `gluamapper:"account" json:"account"`
	Address string `gluamapper:"address" json:"address"`
}

// ListenType - inbound session listener
type ListenType struct {
	MaximumConnections int      `gluamapper:"maximum_connections" json:"maximum_connections"`
	Listen             []string `gluamapper:"listen" json:"listen"`
	Certificate        string   `gluamapper:"certificate" json:"certificate"`
	PrivateKey         string   `gluamapper:"private_key" json:"private_key"`
}

// Configuration - the full daemon configuration
type Configuration struct {
	DataDirectory string `gluamapper:"data_directory" json:"data_directory"`
	PidFile       string `gluamapper:"pidfile" json:"pidfile"`
	Network       string `gluamapper:"network" json:"network"`

	NodeName     string `gluamapper:"node_name" json:"node_name"`
	IdentityFile string `gluamapper:"identity_file" json:"identity_file"`

	Database DatabaseType `gluamapper:"database" json:"database"`

	Parties    []PartyType `gluamapper:"parties" json:"parties"`
	Notary     string      `gluamapper:"notary" json:"notary"`
	Repository string      `gluamapper:"repository" json:"repository"`

	Listen  ListenType           `gluamapper:"listen" json:"listen"`
	Logging logger.Configuration `gluamapper:"logging" json:"logging"`
}

// IsTesting - true for the testing network
func (c *Configuration) IsTesting() bool {
	return Testing == c.Network
}

// HostsNotary - true when this daemon runs the notary itself
func (c *Configuration) HostsNotary() bool {
	return c.Notary == c.NodeName
}

// GetConfiguration - read, decode and verify the configuration
func GetConfiguration(configurationFileName string) (*Configuration, error) {

	configurationFileName, err := filepath.Abs(filepath.Clean(configurationFileName))
	if nil != err {
		return nil, err
	}

	// absolute path to the main directory
	dataDirectory, _ := filepath.Split(configurationFileName)

	options := &Configuration{

		DataDirectory: defaultDataDirectory,
		PidFile:       "", // no PID file by default
		Network:       Live,

		IdentityFile: defaultIdentityFile,

		Database: DatabaseType{
			Directory: defaultLevelDBDirectory,
			Name:      defaultDatabase,
		},

		Listen: ListenType{
			MaximumConnections: defaultConnections,
			Certificate:        defaultCertificateFile,
			PrivateKey:         defaultKeyFile,
		},

		Logging: logger.Configuration{
			Directory: defaultLogDirectory,
			File:      defaultLogFile,
			Size:      defaultLogSize,
			Count:     defaultLogCount,
			Levels:    defaultLogLevels,
		},
	}

	if err := ParseConfigurationFile(configurationFileName, options); nil != err {
		return nil, err
	}

	options.Network = strings.ToLower(options.Network)
	switch options.Network {
	case Live, Testing:
	default:
		return nil, fmt.Errorf("network: %q is not supported", options.Network)
	}

	if "" == options.NodeName {
		return nil, fmt.Errorf("node_name cannot be blank")
	}
	if "" == options.Notary {
		return nil, fmt.Errorf("notary cannot be blank")
	}
	if "" == options.Repository {
		return nil, fmt.Errorf("repository cannot be blank")
	}
	found := false
	for _, party := range options.Parties {
		if "" == party.Name || "" == party.Account {
			return nil, fmt.Errorf("party: %q needs both name and account", party.Name)
		}
		if party.Name == options.NodeName {
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("node_name: %q is not in parties", options.NodeName)
	}

	// ensure absolute data directory
	if "" == options.DataDirectory || "~" == options.DataDirectory {
		return nil, fmt.Errorf("path: %q is not a valid directory", options.DataDirectory)
	} else if "." == options.DataDirectory {
		options.DataDirectory = dataDirectory // same directory as the configuration file
	} else {
		options.DataDirectory = filepath.Clean(options.DataDirectory)
	}

	// this directory must exist - i.e. must be created prior to running
	fileInfo, err := os.Stat(options.DataDirectory)
	if nil != err {
		return nil, err
	}
	if !fileInfo.IsDir() {
		return nil, fmt.Errorf("path: %q is not a directory", options.DataDirectory)
	}

	// force all relevant items to be absolute paths
	// if not, assign them to the data directory
	mustBeAbsolute := []*string{
		&options.IdentityFile,
		&options.Database.Directory,
		&options.Listen.Certificate,
		&options.Listen.PrivateKey,
		&options.Logging.Directory,
	}
	for _, f := range mustBeAbsolute {
		*f = ensureAbsolute(options.DataDirectory, *f)
	}
	if "" != options.PidFile {
		options.PidFile = ensureAbsolute(options.DataDirectory, options.PidFile)
	}

	// fail if any of these are not simple file names i.e. must not
	// contain a path separator, then prefix with the right directory
	mustNotBePaths := [][2]*string{
		{&options.Database.Name, &options.Database.Directory},
		{&options.Logging.File, &options.Logging.Directory},
	}
	for _, f := range mustNotBePaths {
		switch filepath.Dir(*f[0]) {
		case "", ".":
			*f[0] = ensureAbsolute(*f[1], *f[0])
		default:
			return nil, fmt.Errorf("files: %q is not a plain name", *f[0])
		}
	}

	// make absolute and create directories if they do not already exist
	for _, d := range []*string{&options.Database.Directory, &options.Logging.Directory} {
		*d = ensureAbsolute(options.DataDirectory, *d)
		if err := os.MkdirAll(*d, 0700); nil != err {
			return nil, err
		}
	}

	// the database carries the network name so live and testing data
	// can never mix
	options.Database.Name = options.Database.Name + "-" + options.Network

	return options, nil
}

// ensure the path is absolute
func ensureAbsolute(directory string, filePath string) string {
	if !filepath.IsAbs(filePath) {
		filePath = filepath.Join(directory, filePath)
	}
	return filepath.Clean(filePath)
}
