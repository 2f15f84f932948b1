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

package destination

import (
	"context"

	"github.com/datazip-inc/olake-jdbc/types"
)

type Writer interface {
	Type() string
	// Setup opens the underlying output; called once per pool
	Setup(ctx context.Context, config *types.OutputConfig) error
	// Check verifies the output can be written without writing records
	Check(ctx context.Context) error
	// Write persists a batch; a nil error means every record is durable
	Write(ctx context.Context, records []*types.RecordRow) error
	Close(ctx context.Context) error
}
