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

package abstract

import (
	"context"
	"fmt"

	"github.com/datazip-inc/olake-jdbc/pkg/jdbc"
	"github.com/datazip-inc/olake-jdbc/pkg/querier"
	"github.com/datazip-inc/olake-jdbc/types"
	"github.com/datazip-inc/olake-jdbc/utils"
	"github.com/datazip-inc/olake-jdbc/utils/logger"
)

const driverType = "jdbc"

type AbstractDriver struct { //nolint:revive
	config   *types.SourceConfig
	provider jdbc.ConnectionProvider
}

func NewAbstractDriver() *AbstractDriver {
	return &AbstractDriver{config: &types.SourceConfig{}}
}

func (a *AbstractDriver) GetConfigRef() *types.SourceConfig {
	return a.config
}

func (a *AbstractDriver) Spec() any {
	return types.SourceConfig{}
}

func (a *AbstractDriver) Type() string {
	return driverType
}

// Setup validates the config and opens the connection pool
func (a *AbstractDriver) Setup(ctx context.Context) error {
	if err := a.config.Validate(); err != nil {
		return err
	}
	if a.provider != nil {
		return nil
	}

	provider, err := jdbc.Open(ctx, a.config.JDBCURL, a.config.Driver, a.config.DSN, a.config.MaxConnections)
	if err != nil {
		return err
	}
	a.provider = provider
	return nil
}

// Check builds every querier against the live connection without reading rows,
// so configuration errors surface before a sync starts.
func (a *AbstractDriver) Check(ctx context.Context) error {
	if err := a.Setup(ctx); err != nil {
		return err
	}

	conn, err := a.provider.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %s", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, a.provider.Dialect().CurrentTimeQuery()); err != nil {
		return fmt.Errorf("failed to read database time: %s", err)
	}

	return utils.ErrExecSequential(utils.Map(a.config.Tables, func(table *types.TableConfig) func() error {
		return func() error {
			_, err := querier.NewFromConfig(a.provider, table, types.Offset{})
			return err
		}
	})...)
}

func (a *AbstractDriver) Close() error {
	if a.provider == nil {
		return nil
	}
	logger.Debugf("closing %s connection pool", a.provider.Dialect().Name())
	return a.provider.Close()
}
