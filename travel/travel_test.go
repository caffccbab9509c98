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
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/tripwise/concierge/tool"
)

var testNow = time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	repo, err := NewRepository(db)
	if err != nil {
		t.Fatalf("NewRepository() failed: %v", err)
	}
	repo.now = func() time.Time { return testNow }

	seed := []any{
		&Flight{ID: 1, FlightNo: "TW101", DepartureAirport: "SFO", ArrivalAirport: "JFK",
			ScheduledDeparture: testNow.Add(6 * time.Hour), ScheduledArrival: testNow.Add(12 * time.Hour), Status: "scheduled"},
		&Flight{ID: 2, FlightNo: "TW102", DepartureAirport: "SFO", ArrivalAirport: "JFK",
			ScheduledDeparture: testNow.Add(90 * time.Minute), ScheduledArrival: testNow.Add(7 * time.Hour), Status: "scheduled"},
		&Flight{ID: 3, FlightNo: "TW201", DepartureAirport: "SFO", ArrivalAirport: "LAX",
			ScheduledDeparture: testNow.Add(24 * time.Hour), ScheduledArrival: testNow.Add(26 * time.Hour), Status: "scheduled"},
		&Ticket{TicketNo: "T-100", TravelerID: "traveler-1", FlightID: 1, FareClass: "economy", Seat: "12A"},
		&Ticket{TicketNo: "T-200", TravelerID: "traveler-2", FlightID: 3, FareClass: "business", Seat: "2C"},
		&Hotel{ID: 1, Name: "Harborview Inn", Location: "Zurich", PriceTier: "Midscale"},
		&Hotel{ID: 2, Name: "Alpine Lodge", Location: "Lucerne", PriceTier: "Luxury"},
		&CarRental{ID: 1, Name: "Speedy Rentals", Location: "Zurich", PriceTier: "Economy"},
		&Excursion{ID: 1, Name: "Old Town Walk", Location: "Zurich", Keywords: "history,walking"},
		&Excursion{ID: 2, Name: "Lake Cruise", Location: "Lucerne", Keywords: "boat,scenic"},
	}
	for _, rec := range seed {
		if err := repo.db.Create(rec).Error; err != nil {
			t.Fatalf("seeding %T: %v", rec, err)
		}
	}
	return repo
}

func TestSearchFlights(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	flights, err := repo.SearchFlights(ctx, "SFO", "JFK", nil, nil, 0)
	if err != nil {
		t.Fatalf("SearchFlights() failed: %v", err)
	}
	var nos []string
	for _, f := range flights {
		nos = append(nos, f.FlightNo)
	}
	// Ordered by scheduled departure.
	if diff := cmp.Diff([]string{"TW102", "TW101"}, nos); diff != "" {
		t.Errorf("flight order mismatch (-want +got):\n%s", diff)
	}

	start := testNow.Add(3 * time.Hour)
	flights, err = repo.SearchFlights(ctx, "", "", &start, nil, 0)
	if err != nil {
		t.Fatalf("SearchFlights() with window failed: %v", err)
	}
	if len(flights) != 2 {
		t.Errorf("window search returned %d flights, want 2", len(flights))
	}

	flights, err = repo.SearchFlights(ctx, "", "", nil, nil, 1)
	if err != nil {
		t.Fatalf("SearchFlights() with limit failed: %v", err)
	}
	if len(flights) != 1 {
		t.Errorf("limited search returned %d flights, want 1", len(flights))
	}
}

func TestUpdateTicketFlight(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if err := repo.UpdateTicketFlight(ctx, "traveler-1", "T-100", 3); err != nil {
		t.Fatalf("UpdateTicketFlight() failed: %v", err)
	}
	infos, err := repo.TicketsFor(ctx, "traveler-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 || infos[0].FlightNo != "TW201" {
		t.Errorf("after rebooking, tickets = %+v", infos)
	}

	// Flight 2 departs in 90 minutes, inside the three-hour cutoff.
	err = repo.UpdateTicketFlight(ctx, "traveler-1", "T-100", 2)
	if err == nil || !strings.Contains(err.Error(), "under 3 hours") {
		t.Errorf("rebooking inside cutoff: err = %v, want the lead-time refusal", err)
	}

	if err := repo.UpdateTicketFlight(ctx, "traveler-1", "T-100", 99); err == nil ||
		!strings.Contains(err.Error(), "invalid new flight ID") {
		t.Errorf("rebooking to missing flight: err = %v", err)
	}
	if err := repo.UpdateTicketFlight(ctx, "traveler-1", "T-200", 1); err == nil ||
		!strings.Contains(err.Error(), "does not own") {
		t.Errorf("rebooking someone else's ticket: err = %v", err)
	}
	if err := repo.UpdateTicketFlight(ctx, "traveler-1", "T-999", 1); err == nil ||
		!strings.Contains(err.Error(), "no ticket found") {
		t.Errorf("rebooking missing ticket: err = %v", err)
	}
}

func TestCancelTicket(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if err := repo.CancelTicket(ctx, "traveler-2", "T-100"); err == nil ||
		!strings.Contains(err.Error(), "does not own") {
		t.Errorf("cancelling someone else's ticket: err = %v", err)
	}

	if err := repo.CancelTicket(ctx, "traveler-1", "T-100"); err != nil {
		t.Fatalf("CancelTicket() failed: %v", err)
	}
	infos, err := repo.TicketsFor(ctx, "traveler-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 0 {
		t.Errorf("tickets after cancellation = %+v", infos)
	}
}

func TestHotelLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	hotels, err := repo.SearchHotels(ctx, "zur", "")
	if err != nil {
		t.Fatalf("SearchHotels() failed: %v", err)
	}
	if len(hotels) != 1 || hotels[0].Name != "Harborview Inn" {
		t.Errorf("location search = %+v", hotels)
	}

	if err := repo.BookHotel(ctx, 1); err != nil {
		t.Fatalf("BookHotel() failed: %v", err)
	}
	checkin := testNow.Add(48 * time.Hour)
	if err := repo.UpdateHotel(ctx, 1, &checkin, nil); err != nil {
		t.Fatalf("UpdateHotel() failed: %v", err)
	}
	hotels, _ = repo.SearchHotels(ctx, "", "Harborview")
	if len(hotels) != 1 || !hotels[0].Booked {
		t.Fatalf("after booking, hotel = %+v", hotels)
	}
	if hotels[0].CheckinDate == nil || !hotels[0].CheckinDate.Equal(checkin) {
		t.Errorf("checkin date = %v, want %v", hotels[0].CheckinDate, checkin)
	}
	if hotels[0].CheckoutDate != nil {
		t.Errorf("checkout date = %v, want unset after partial update", hotels[0].CheckoutDate)
	}

	if err := repo.CancelHotel(ctx, 1); err != nil {
		t.Fatalf("CancelHotel() failed: %v", err)
	}
	hotels, _ = repo.SearchHotels(ctx, "", "Harborview")
	if hotels[0].Booked {
		t.Error("hotel still booked after cancellation")
	}

	if err := repo.BookHotel(ctx, 99); err == nil ||
		!strings.Contains(err.Error(), "no hotel found with ID 99") {
		t.Errorf("booking missing hotel: err = %v", err)
	}
	if err := repo.UpdateHotel(ctx, 99, &checkin, nil); err == nil ||
		!strings.Contains(err.Error(), "no hotel found with ID 99") {
		t.Errorf("updating missing hotel: err = %v", err)
	}
}

func TestCarRentalUpdate(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if err := repo.BookCarRental(ctx, 1); err != nil {
		t.Fatalf("BookCarRental() failed: %v", err)
	}
	// An update with no dates is a no-op, not an error.
	if err := repo.UpdateCarRental(ctx, 1, nil, nil); err != nil {
		t.Errorf("empty update: err = %v", err)
	}
	end := testNow.Add(72 * time.Hour)
	if err := repo.UpdateCarRental(ctx, 1, nil, &end); err != nil {
		t.Fatalf("UpdateCarRental() failed: %v", err)
	}
	rentals, _ := repo.SearchCarRentals(ctx, "Zurich", "")
	if len(rentals) != 1 || rentals[0].EndDate == nil || !rentals[0].EndDate.Equal(end) {
		t.Errorf("after update, rental = %+v", rentals)
	}
	if rentals[0].StartDate != nil {
		t.Errorf("start date = %v, want unset", rentals[0].StartDate)
	}
}

func TestSearchExcursions(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	excursions, err := repo.SearchExcursions(ctx, "", "", []string{"boat", "scenic"})
	if err != nil {
		t.Fatalf("SearchExcursions() failed: %v", err)
	}
	if len(excursions) != 1 || excursions[0].Name != "Lake Cruise" {
		t.Errorf("keyword search = %+v", excursions)
	}

	if err := repo.UpdateExcursion(ctx, 1, "Meet at the clock tower at 10am."); err != nil {
		t.Fatalf("UpdateExcursion() failed: %v", err)
	}
	excursions, _ = repo.SearchExcursions(ctx, "Zurich", "", nil)
	if len(excursions) != 1 || excursions[0].Details != "Meet at the clock tower at 10am." {
		t.Errorf("after update, excursion = %+v", excursions)
	}
}

func TestContextFetcher(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	f := NewContextFetcher(repo)

	text, err := f.FetchUserContext(ctx, "traveler-1")
	if err != nil {
		t.Fatalf("FetchUserContext() failed: %v", err)
	}
	for _, want := range []string{"traveler-1", "T-100", "TW101", "SFO", "JFK", "economy", "12A"} {
		if !strings.Contains(text, want) {
			t.Errorf("context %q missing %q", text, want)
		}
	}

	text, err = f.FetchUserContext(ctx, "traveler-9")
	if err != nil {
		t.Fatalf("FetchUserContext() for unknown traveler failed: %v", err)
	}
	if text != "Traveler traveler-9 has no current flight bookings." {
		t.Errorf("empty context = %q", text)
	}
}

func TestToolsUseTravelerIdentity(t *testing.T) {
	repo := newTestRepo(t)

	if _, err := repo.cancelTicketTool(context.Background(), cancelTicketArgs{TicketNo: "T-100"}); err == nil ||
		!strings.Contains(err.Error(), "no traveler identity") {
		t.Errorf("cancel without identity: err = %v", err)
	}

	ctx := tool.WithTraveler(context.Background(), "traveler-1")
	out, err := repo.updateTicketTool(ctx, updateTicketArgs{TicketNo: "T-100", NewFlightID: 3})
	if err != nil {
		t.Fatalf("updateTicketTool() failed: %v", err)
	}
	if out != "Ticket successfully updated to new flight." {
		t.Errorf("update reply = %q", out)
	}
	out, err = repo.cancelTicketTool(ctx, cancelTicketArgs{TicketNo: "T-100"})
	if err != nil {
		t.Fatalf("cancelTicketTool() failed: %v", err)
	}
	if out != "Ticket successfully cancelled." {
		t.Errorf("cancel reply = %q", out)
	}
}

func TestSearchToolsRender(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	out, err := repo.searchHotelsTool(ctx, searchStaysArgs{Location: "Nowhere"})
	if err != nil {
		t.Fatalf("searchHotelsTool() failed: %v", err)
	}
	if out != "No hotels found matching the given criteria." {
		t.Errorf("empty search reply = %q", out)
	}

	out, err = repo.searchFlightsTool(ctx, searchFlightsArgs{DepartureAirport: "SFO", ArrivalAirport: "LAX"})
	if err != nil {
		t.Fatalf("searchFlightsTool() failed: %v", err)
	}
	if !strings.Contains(out, `"flight_no":"TW201"`) {
		t.Errorf("search reply = %q, want JSON rows", out)
	}

	if _, err := repo.searchFlightsTool(ctx, searchFlightsArgs{StartTime: "yesterday-ish"}); err == nil ||
		!strings.Contains(err.Error(), "invalid start_time") {
		t.Errorf("bad time filter: err = %v", err)
	}
}

func TestParseTime(t *testing.T) {
	for _, s := range []string{"2026-08-28T12:00:00Z", "2026-08-28 12:00:00", "2026-08-28"} {
		got, err := parseTime(s)
		if err != nil || got == nil {
			t.Errorf("parseTime(%q) = %v, %v", s, got, err)
		}
	}
	if got, err := parseTime(""); got != nil || err != nil {
		t.Errorf("parseTime(\"\") = %v, %v, want nil, nil", got, err)
	}
	if _, err := parseTime("next tuesday"); err == nil {
		t.Error("parseTime accepted garbage")
	}
}
