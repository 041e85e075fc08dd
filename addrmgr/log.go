// Copyright (c) 2013-2014 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package addrmgr tracks the addresses of known peers: where they were
// last seen reachable, and how to pick a handful of fresh candidates when
// connmgr needs to dial out.
package addrmgr

import (
	"github.com/xai-blockchain/xai-sub002/logger"
	"github.com/xai-blockchain/xai-sub002/util/panics"
)

var log, _ = logger.Get(logger.SubsystemTags.ADDR)
var spawn = panics.GoroutineWrapperFuncWithPanicHandler(log)
