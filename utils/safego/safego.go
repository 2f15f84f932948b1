/*
 * Copyright 2025 Olake By Datazip
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package safego

import (
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/datazip-inc/olake-jdbc/utils/logger"
)

var startTime = time.Now()

// Recovery logs a recovered panic with its stack; exit terminates the process
func Recovery(exit bool) {
	err := recover()
	if err != nil {
		logStack(err)
	}
	if exit {
		logger.Infof("Time of execution %v", time.Since(startTime).String())
		os.Exit(1)
	}
}

// Call runs f and turns a panic into an error, so one table cannot bring down
// every other table of the sync.
func Call(f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logStack(r)
			err = fmt.Errorf("recovered panic: %v", r)
		}
	}()
	return f()
}

func logStack(value any) {
	logger.Error(value)
	for _, str := range strings.Split(string(debug.Stack()), "\n") {
		logger.Error(strings.ReplaceAll(str, "\t", ""))
	}
}
