/*
 * MIT License
 *
 * Copyright (c) 2022-2025  Arsene Tochemey Gandote
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package actor

import (
	"github.com/systemorph/meshweaver/log"
	"github.com/systemorph/meshweaver/persistence"
)

// GrainProps carries what a grain needs during activation and deactivation.
type GrainProps struct {
	identity *GrainIdentity
	system   *System
}

func newGrainProps(identity *GrainIdentity, system *System) *GrainProps {
	return &GrainProps{identity: identity, system: system}
}

// Identity returns the grain identity
func (p *GrainProps) Identity() *GrainIdentity {
	return p.identity
}

// System returns the actor system hosting the grain
func (p *GrainProps) System() *System {
	return p.system
}

// StateStore returns the durable store grains keep their state in.
func (p *GrainProps) StateStore() persistence.Store {
	return p.system.stateStore
}

// Logger returns the system logger
func (p *GrainProps) Logger() log.Logger {
	return p.system.logger
}
