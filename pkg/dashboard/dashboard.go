/*
 * Copyright 2025 Carver Automation Corporation.
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

// Package dashboard is a terminal UI that follows a hostmon server's live
// event stream.
package dashboard

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/carverauto/hostmon/pkg/logger"
)

// Run shows the dashboard for the server at apiURL until the user quits or
// ctx is cancelled.
func Run(ctx context.Context, apiURL, apiKey string, log logger.Logger) error {
	streamURL, err := StreamURL(apiURL)
	if err != nil {
		return err
	}

	p := tea.NewProgram(NewModel(streamURL), tea.WithAltScreen(), tea.WithContext(ctx))

	clientCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	client := NewStreamClient(streamURL, apiKey, log)

	go func() {
		if err := client.Run(clientCtx, p.Send); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Stream client stopped")
			p.Send(StreamStateMsg{Err: err})
		}
	}()

	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}

		return err
	}

	return nil
}
