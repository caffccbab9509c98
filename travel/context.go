// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package travel

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ContextFetcher renders a traveler's current bookings into the text block
// injected into every assistant instruction at the start of a turn.
type ContextFetcher struct {
	repo *Repository
}

// NewContextFetcher returns a fetcher over the travel repository.
func NewContextFetcher(repo *Repository) *ContextFetcher {
	return &ContextFetcher{repo: repo}
}

// FetchUserContext returns the traveler's flight bookings as readable text.
func (f *ContextFetcher) FetchUserContext(ctx context.Context, travelerID string) (string, error) {
	infos, err := f.repo.TicketsFor(ctx, travelerID)
	if err != nil {
		return "", err
	}
	if len(infos) == 0 {
		return fmt.Sprintf("Traveler %s has no current flight bookings.", travelerID), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Current flight bookings for traveler %s:\n", travelerID)
	for _, info := range infos {
		fmt.Fprintf(&b, "- Ticket %s: flight %s from %s to %s, departs %s, arrives %s, %s class, seat %s\n",
			info.TicketNo, info.FlightNo, info.DepartureAirport, info.ArrivalAirport,
			info.ScheduledDeparture.Format(time.RFC3339), info.ScheduledArrival.Format(time.RFC3339),
			info.FareClass, info.Seat)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
