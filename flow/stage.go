// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package flow

// Stage - progress marker of a flow instance
type Stage byte

// stages in execution order
const (
	StageNone Stage = iota
	StageResolving
	StageComposing
	StageVerifying
	StageSigning
	StageCollecting
	StageFinalising
	StageDisseminating
	StageDone
)

var stageNames = []string{
	"none",
	"resolving",
	"composing",
	"verifying",
	"signing",
	"collecting",
	"finalising",
	"disseminating",
	"done",
}

// String - the name of a stage
func (stage Stage) String() string {
	if int(stage) >= len(stageNames) {
		return "invalid"
	}
	return stageNames[stage]
}
