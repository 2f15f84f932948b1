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

package types

import "time"

type MessageType string

const (
	LogMessage              MessageType = "LOG"
	ConnectionStatusMessage MessageType = "CONNECTION_STATUS"
	StateMessage            MessageType = "STATE"
	RecordMessage           MessageType = "RECORD"
	SpecMessage             MessageType = "SPEC"
)

type ConnectionStatus string

const (
	ConnectionSucceed ConnectionStatus = "SUCCEEDED"
	ConnectionFailed  ConnectionStatus = "FAILED"
)

// Message is the envelope of every line the connector prints
type Message struct {
	Type             MessageType       `json:"type"`
	Log              *LogRow           `json:"log,omitempty"`
	ConnectionStatus *StatusRow        `json:"connectionStatus,omitempty"`
	Record           *RecordRow        `json:"record,omitempty"`
	State            map[string]Offset `json:"state,omitempty"`
	Spec             map[string]any    `json:"spec,omitempty"`
}

// LogRow is one zerolog event
type LogRow struct {
	Level   string `json:"level"`
	Time    string `json:"time,omitempty"`
	Message string `json:"message"`
}

// StatusRow is the result of a check
type StatusRow struct {
	Status  ConnectionStatus `json:"status,omitempty"`
	Message string           `json:"message,omitempty"`
}

// RecordRow is one emitted row together with the offset it advances the source to
type RecordRow struct {
	Source      string    `json:"source"`
	TopicPrefix string    `json:"topic_prefix,omitempty"`
	SyncID      string    `json:"sync_id,omitempty"`
	Data        Record    `json:"data"`
	Offset      Offset    `json:"offset"`
	EmittedAt   time.Time `json:"emitted_at"`
}
