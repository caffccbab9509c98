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
	"encoding/json"
	"fmt"
	"time"

	"github.com/tripwise/concierge/tool"
)

type searchFlightsArgs struct {
	DepartureAirport string `json:"departure_airport,omitempty"`
	ArrivalAirport   string `json:"arrival_airport,omitempty"`
	StartTime        string `json:"start_time,omitempty"`
	EndTime          string `json:"end_time,omitempty"`
	Limit            int    `json:"limit,omitempty"`
}

type updateTicketArgs struct {
	TicketNo    string `json:"ticket_no"`
	NewFlightID uint   `json:"new_flight_id"`
}

type cancelTicketArgs struct {
	TicketNo string `json:"ticket_no"`
}

type searchStaysArgs struct {
	Location string `json:"location,omitempty"`
	Name     string `json:"name,omitempty"`
}

type bookingIDArgs struct {
	ID uint `json:"id"`
}

type updateHotelArgs struct {
	ID           uint   `json:"id"`
	CheckinDate  string `json:"checkin_date,omitempty"`
	CheckoutDate string `json:"checkout_date,omitempty"`
}

type updateCarRentalArgs struct {
	ID        uint   `json:"id"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

type searchExcursionsArgs struct {
	Location string   `json:"location,omitempty"`
	Name     string   `json:"name,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
}

type updateExcursionArgs struct {
	ID      uint   `json:"id"`
	Details string `json:"details"`
}

// Register installs every travel tool into the registry with its safety
// class. Searches are safe; booking mutations are sensitive.
func Register(reg *tool.Registry, repo *Repository) error {
	type reg3 struct {
		t      tool.Tool
		class  tool.SafetyClass
		domain tool.Domain
	}
	entries := []reg3{
		{tool.MustFunctionTool("search_flights",
			"Search for flights by departure airport, arrival airport, and departure time window.",
			repo.searchFlightsTool), tool.ClassSafe, tool.DomainFlight},
		{tool.MustFunctionTool("update_ticket_to_new_flight",
			"Update the user's ticket to a new valid flight.",
			repo.updateTicketTool), tool.ClassSensitive, tool.DomainFlight},
		{tool.MustFunctionTool("cancel_ticket",
			"Cancel the user's ticket and remove it from the database.",
			repo.cancelTicketTool), tool.ClassSensitive, tool.DomainFlight},

		{tool.MustFunctionTool("search_hotels",
			"Search for hotels by location and name.",
			repo.searchHotelsTool), tool.ClassSafe, tool.DomainHotel},
		{tool.MustFunctionTool("book_hotel",
			"Book a hotel by its ID.",
			repo.bookHotelTool), tool.ClassSensitive, tool.DomainHotel},
		{tool.MustFunctionTool("update_hotel",
			"Update a hotel booking's check-in and check-out dates by its ID.",
			repo.updateHotelTool), tool.ClassSensitive, tool.DomainHotel},
		{tool.MustFunctionTool("cancel_hotel",
			"Cancel a hotel booking by its ID.",
			repo.cancelHotelTool), tool.ClassSensitive, tool.DomainHotel},

		{tool.MustFunctionTool("search_car_rentals",
			"Search for car rentals by location and company name.",
			repo.searchCarRentalsTool), tool.ClassSafe, tool.DomainCar},
		{tool.MustFunctionTool("book_car_rental",
			"Book a car rental by its ID.",
			repo.bookCarRentalTool), tool.ClassSensitive, tool.DomainCar},
		{tool.MustFunctionTool("update_car_rental",
			"Update a car rental's start and end dates by its ID.",
			repo.updateCarRentalTool), tool.ClassSensitive, tool.DomainCar},
		{tool.MustFunctionTool("cancel_car_rental",
			"Cancel a car rental by its ID.",
			repo.cancelCarRentalTool), tool.ClassSensitive, tool.DomainCar},

		{tool.MustFunctionTool("search_trip_recommendations",
			"Search for trip recommendations by location, name, and keywords.",
			repo.searchExcursionsTool), tool.ClassSafe, tool.DomainExcursion},
		{tool.MustFunctionTool("book_excursion",
			"Book an excursion by its recommendation ID.",
			repo.bookExcursionTool), tool.ClassSensitive, tool.DomainExcursion},
		{tool.MustFunctionTool("update_excursion",
			"Update an excursion's details by its recommendation ID.",
			repo.updateExcursionTool), tool.ClassSensitive, tool.DomainExcursion},
		{tool.MustFunctionTool("cancel_excursion",
			"Cancel an excursion by its recommendation ID.",
			repo.cancelExcursionTool), tool.ClassSensitive, tool.DomainExcursion},
	}
	for _, e := range entries {
		if err := reg.Register(e.t, e.class, e.domain); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) searchFlightsTool(ctx context.Context, in searchFlightsArgs) (string, error) {
	start, err := parseTime(in.StartTime)
	if err != nil {
		return "", fmt.Errorf("invalid start_time: %w", err)
	}
	end, err := parseTime(in.EndTime)
	if err != nil {
		return "", fmt.Errorf("invalid end_time: %w", err)
	}
	flights, err := r.SearchFlights(ctx, in.DepartureAirport, in.ArrivalAirport, start, end, in.Limit)
	if err != nil {
		return "", err
	}
	return renderRows(flights, "No flights found matching the given criteria.")
}

func (r *Repository) updateTicketTool(ctx context.Context, in updateTicketArgs) (string, error) {
	traveler := tool.TravelerID(ctx)
	if traveler == "" {
		return "", fmt.Errorf("no traveler identity configured")
	}
	if err := r.UpdateTicketFlight(ctx, traveler, in.TicketNo, in.NewFlightID); err != nil {
		return "", err
	}
	return "Ticket successfully updated to new flight.", nil
}

func (r *Repository) cancelTicketTool(ctx context.Context, in cancelTicketArgs) (string, error) {
	traveler := tool.TravelerID(ctx)
	if traveler == "" {
		return "", fmt.Errorf("no traveler identity configured")
	}
	if err := r.CancelTicket(ctx, traveler, in.TicketNo); err != nil {
		return "", err
	}
	return "Ticket successfully cancelled.", nil
}

func (r *Repository) searchHotelsTool(ctx context.Context, in searchStaysArgs) (string, error) {
	hotels, err := r.SearchHotels(ctx, in.Location, in.Name)
	if err != nil {
		return "", err
	}
	return renderRows(hotels, "No hotels found matching the given criteria.")
}

func (r *Repository) bookHotelTool(ctx context.Context, in bookingIDArgs) (string, error) {
	if err := r.BookHotel(ctx, in.ID); err != nil {
		return "", err
	}
	return fmt.Sprintf("Hotel %d successfully booked.", in.ID), nil
}

func (r *Repository) updateHotelTool(ctx context.Context, in updateHotelArgs) (string, error) {
	checkin, err := parseTime(in.CheckinDate)
	if err != nil {
		return "", fmt.Errorf("invalid checkin_date: %w", err)
	}
	checkout, err := parseTime(in.CheckoutDate)
	if err != nil {
		return "", fmt.Errorf("invalid checkout_date: %w", err)
	}
	if err := r.UpdateHotel(ctx, in.ID, checkin, checkout); err != nil {
		return "", err
	}
	return fmt.Sprintf("Hotel %d successfully updated.", in.ID), nil
}

func (r *Repository) cancelHotelTool(ctx context.Context, in bookingIDArgs) (string, error) {
	if err := r.CancelHotel(ctx, in.ID); err != nil {
		return "", err
	}
	return fmt.Sprintf("Hotel %d successfully cancelled.", in.ID), nil
}

func (r *Repository) searchCarRentalsTool(ctx context.Context, in searchStaysArgs) (string, error) {
	rentals, err := r.SearchCarRentals(ctx, in.Location, in.Name)
	if err != nil {
		return "", err
	}
	return renderRows(rentals, "No car rentals found matching the given criteria.")
}

func (r *Repository) bookCarRentalTool(ctx context.Context, in bookingIDArgs) (string, error) {
	if err := r.BookCarRental(ctx, in.ID); err != nil {
		return "", err
	}
	return fmt.Sprintf("Car rental %d successfully booked.", in.ID), nil
}

func (r *Repository) updateCarRentalTool(ctx context.Context, in updateCarRentalArgs) (string, error) {
	start, err := parseTime(in.StartDate)
	if err != nil {
		return "", fmt.Errorf("invalid start_date: %w", err)
	}
	end, err := parseTime(in.EndDate)
	if err != nil {
		return "", fmt.Errorf("invalid end_date: %w", err)
	}
	if err := r.UpdateCarRental(ctx, in.ID, start, end); err != nil {
		return "", err
	}
	return fmt.Sprintf("Car rental %d successfully updated.", in.ID), nil
}

func (r *Repository) cancelCarRentalTool(ctx context.Context, in bookingIDArgs) (string, error) {
	if err := r.CancelCarRental(ctx, in.ID); err != nil {
		return "", err
	}
	return fmt.Sprintf("Car rental %d successfully cancelled.", in.ID), nil
}

func (r *Repository) searchExcursionsTool(ctx context.Context, in searchExcursionsArgs) (string, error) {
	excursions, err := r.SearchExcursions(ctx, in.Location, in.Name, in.Keywords)
	if err != nil {
		return "", err
	}
	return renderRows(excursions, "No trip recommendations found matching the given criteria.")
}

func (r *Repository) bookExcursionTool(ctx context.Context, in bookingIDArgs) (string, error) {
	if err := r.BookExcursion(ctx, in.ID); err != nil {
		return "", err
	}
	return fmt.Sprintf("Excursion %d successfully booked.", in.ID), nil
}

func (r *Repository) updateExcursionTool(ctx context.Context, in updateExcursionArgs) (string, error) {
	if err := r.UpdateExcursion(ctx, in.ID, in.Details); err != nil {
		return "", err
	}
	return fmt.Sprintf("Excursion %d successfully updated.", in.ID), nil
}

func (r *Repository) cancelExcursionTool(ctx context.Context, in bookingIDArgs) (string, error) {
	if err := r.CancelExcursion(ctx, in.ID); err != nil {
		return "", err
	}
	return fmt.Sprintf("Excursion %d successfully cancelled.", in.ID), nil
}

// parseTime accepts RFC 3339 timestamps and bare dates. An empty string
// parses to nil.
func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized time %q", s)
}

// renderRows marshals result rows for the model, substituting a readable
// notice when nothing matched.
func renderRows[T any](rows []T, empty string) (string, error) {
	if len(rows) == 0 {
		return empty, nil
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("encoding results: %w", err)
	}
	return string(b), nil
}
