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

// Package travel provides the booking records backing the flight, hotel,
// car-rental, and excursion assistants, and the tools that read and mutate
// them.
package travel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Flight is one scheduled flight leg.
type Flight struct {
	ID                 uint      `gorm:"primaryKey;column:flight_id" json:"flight_id"`
	FlightNo           string    `gorm:"column:flight_no" json:"flight_no"`
	DepartureAirport   string    `json:"departure_airport"`
	ArrivalAirport     string    `json:"arrival_airport"`
	ScheduledDeparture time.Time `json:"scheduled_departure"`
	ScheduledArrival   time.Time `json:"scheduled_arrival"`
	Status             string    `json:"status"`
}

func (Flight) TableName() string { return "flights" }

// Ticket links a traveler to a flight.
type Ticket struct {
	TicketNo   string `gorm:"primaryKey;column:ticket_no" json:"ticket_no"`
	TravelerID string `gorm:"index" json:"traveler_id"`
	FlightID   uint   `json:"flight_id"`
	FareClass  string `json:"fare_class"`
	Seat       string `json:"seat"`
}

func (Ticket) TableName() string { return "tickets" }

// Hotel is a bookable hotel listing.
type Hotel struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Name         string     `json:"name"`
	Location     string     `json:"location"`
	PriceTier    string     `json:"price_tier"`
	CheckinDate  *time.Time `json:"checkin_date,omitempty"`
	CheckoutDate *time.Time `json:"checkout_date,omitempty"`
	Booked       bool       `json:"booked"`
}

func (Hotel) TableName() string { return "hotels" }

// CarRental is a bookable rental listing.
type CarRental struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Name      string     `json:"name"`
	Location  string     `json:"location"`
	PriceTier string     `json:"price_tier"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	Booked    bool       `json:"booked"`
}

func (CarRental) TableName() string { return "car_rentals" }

// Excursion is a bookable trip recommendation.
type Excursion struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
	Keywords string `json:"keywords"`
	Details  string `json:"details"`
	Booked   bool   `json:"booked"`
}

func (Excursion) TableName() string { return "excursions" }

// TicketInfo is a ticket joined with its flight, as surfaced in the
// traveler context.
type TicketInfo struct {
	TicketNo           string    `json:"ticket_no"`
	FareClass          string    `json:"fare_class"`
	Seat               string    `json:"seat"`
	FlightNo           string    `json:"flight_no"`
	DepartureAirport   string    `json:"departure_airport"`
	ArrivalAirport     string    `json:"arrival_airport"`
	ScheduledDeparture time.Time `json:"scheduled_departure"`
	ScheduledArrival   time.Time `json:"scheduled_arrival"`
}

// minRebookLead is the minimum time before departure at which a ticket may
// still be moved to a new flight.
const minRebookLead = 3 * time.Hour

// Open opens (creating if needed) the travel database at path.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening travel database: %w", err)
	}
	return db, nil
}

// Repository mediates all reads and writes of the travel records.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository migrates the schema and returns a repository over db.
func NewRepository(db *gorm.DB) (*Repository, error) {
	if err := db.AutoMigrate(&Flight{}, &Ticket{}, &Hotel{}, &CarRental{}, &Excursion{}); err != nil {
		return nil, fmt.Errorf("migrating travel schema: %w", err)
	}
	return &Repository{db: db, now: time.Now}, nil
}

// SearchFlights returns flights matching the given filters. Empty string
// and nil filters match everything.
func (r *Repository) SearchFlights(ctx context.Context, departure, arrival string, start, end *time.Time, limit int) ([]Flight, error) {
	if limit <= 0 {
		limit = 20
	}
	q := r.db.WithContext(ctx).Model(&Flight{})
	if departure != "" {
		q = q.Where("departure_airport = ?", departure)
	}
	if arrival != "" {
		q = q.Where("arrival_airport = ?", arrival)
	}
	if start != nil {
		q = q.Where("scheduled_departure >= ?", *start)
	}
	if end != nil {
		q = q.Where("scheduled_departure <= ?", *end)
	}
	var flights []Flight
	if err := q.Order("scheduled_departure").Limit(limit).Find(&flights).Error; err != nil {
		return nil, fmt.Errorf("searching flights: %w", err)
	}
	return flights, nil
}

// TicketsFor returns the traveler's tickets joined with flight details.
func (r *Repository) TicketsFor(ctx context.Context, travelerID string) ([]TicketInfo, error) {
	var infos []TicketInfo
	err := r.db.WithContext(ctx).Model(&Ticket{}).
		Select("tickets.ticket_no, tickets.fare_class, tickets.seat, "+
			"flights.flight_no, flights.departure_airport, flights.arrival_airport, "+
			"flights.scheduled_departure, flights.scheduled_arrival").
		Joins("JOIN flights ON flights.flight_id = tickets.flight_id").
		Where("tickets.traveler_id = ?", travelerID).
		Order("flights.scheduled_departure").
		Scan(&infos).Error
	if err != nil {
		return nil, fmt.Errorf("loading tickets for traveler %s: %w", travelerID, err)
	}
	return infos, nil
}

// UpdateTicketFlight moves the traveler's ticket to a new flight. The new
// flight must exist and depart at least three hours from now, and the
// ticket must belong to the traveler.
func (r *Repository) UpdateTicketFlight(ctx context.Context, travelerID, ticketNo string, newFlightID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var flight Flight
		if err := tx.First(&flight, "flight_id = ?", newFlightID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("invalid new flight ID %d", newFlightID)
			}
			return err
		}
		if lead := flight.ScheduledDeparture.Sub(r.now()); lead < minRebookLead {
			return fmt.Errorf(
				"not permitted to reschedule to a flight departing in under 3 hours, selected flight departs in %s",
				lead.Round(time.Minute))
		}

		var ticket Ticket
		if err := tx.First(&ticket, "ticket_no = ?", ticketNo).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("no ticket found with number %s", ticketNo)
			}
			return err
		}
		if ticket.TravelerID != travelerID {
			return fmt.Errorf("traveler %s does not own ticket %s", travelerID, ticketNo)
		}
		return tx.Model(&Ticket{}).Where("ticket_no = ?", ticketNo).
			Update("flight_id", newFlightID).Error
	})
}

// CancelTicket removes the traveler's ticket.
func (r *Repository) CancelTicket(ctx context.Context, travelerID, ticketNo string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ticket Ticket
		if err := tx.First(&ticket, "ticket_no = ?", ticketNo).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("no ticket found with number %s", ticketNo)
			}
			return err
		}
		if ticket.TravelerID != travelerID {
			return fmt.Errorf("traveler %s does not own ticket %s", travelerID, ticketNo)
		}
		return tx.Delete(&Ticket{}, "ticket_no = ?", ticketNo).Error
	})
}

// SearchHotels returns hotels matching the optional location and name
// substrings.
func (r *Repository) SearchHotels(ctx context.Context, location, name string) ([]Hotel, error) {
	q := r.db.WithContext(ctx).Model(&Hotel{})
	if location != "" {
		q = q.Where("location LIKE ?", "%"+location+"%")
	}
	if name != "" {
		q = q.Where("name LIKE ?", "%"+name+"%")
	}
	var hotels []Hotel
	if err := q.Order("id").Find(&hotels).Error; err != nil {
		return nil, fmt.Errorf("searching hotels: %w", err)
	}
	return hotels, nil
}

// BookHotel marks the hotel as booked.
func (r *Repository) BookHotel(ctx context.Context, id uint) error {
	return r.setBooked(ctx, &Hotel{}, "hotel", id, true)
}

// UpdateHotel changes the stay dates of a hotel booking. Nil dates are
// left unchanged.
func (r *Repository) UpdateHotel(ctx context.Context, id uint, checkin, checkout *time.Time) error {
	updates := map[string]any{}
	if checkin != nil {
		updates["checkin_date"] = *checkin
	}
	if checkout != nil {
		updates["checkout_date"] = *checkout
	}
	if len(updates) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&Hotel{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("updating hotel %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("no hotel found with ID %d", id)
	}
	return nil
}

// CancelHotel releases the hotel booking.
func (r *Repository) CancelHotel(ctx context.Context, id uint) error {
	return r.setBooked(ctx, &Hotel{}, "hotel", id, false)
}

// SearchCarRentals returns rentals matching the optional location and name
// substrings.
func (r *Repository) SearchCarRentals(ctx context.Context, location, name string) ([]CarRental, error) {
	q := r.db.WithContext(ctx).Model(&CarRental{})
	if location != "" {
		q = q.Where("location LIKE ?", "%"+location+"%")
	}
	if name != "" {
		q = q.Where("name LIKE ?", "%"+name+"%")
	}
	var rentals []CarRental
	if err := q.Order("id").Find(&rentals).Error; err != nil {
		return nil, fmt.Errorf("searching car rentals: %w", err)
	}
	return rentals, nil
}

// BookCarRental marks the rental as booked.
func (r *Repository) BookCarRental(ctx context.Context, id uint) error {
	return r.setBooked(ctx, &CarRental{}, "car rental", id, true)
}

// UpdateCarRental changes the rental period. Nil dates are left unchanged.
func (r *Repository) UpdateCarRental(ctx context.Context, id uint, start, end *time.Time) error {
	updates := map[string]any{}
	if start != nil {
		updates["start_date"] = *start
	}
	if end != nil {
		updates["end_date"] = *end
	}
	if len(updates) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&CarRental{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("updating car rental %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("no car rental found with ID %d", id)
	}
	return nil
}

// CancelCarRental releases the rental booking.
func (r *Repository) CancelCarRental(ctx context.Context, id uint) error {
	return r.setBooked(ctx, &CarRental{}, "car rental", id, false)
}

// SearchExcursions returns trip recommendations matching the optional
// location, name, and keyword substrings. Keywords are matched one by one
// against the stored keyword list.
func (r *Repository) SearchExcursions(ctx context.Context, location, name string, keywords []string) ([]Excursion, error) {
	q := r.db.WithContext(ctx).Model(&Excursion{})
	if location != "" {
		q = q.Where("location LIKE ?", "%"+location+"%")
	}
	if name != "" {
		q = q.Where("name LIKE ?", "%"+name+"%")
	}
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		q = q.Where("keywords LIKE ?", "%"+kw+"%")
	}
	var excursions []Excursion
	if err := q.Order("id").Find(&excursions).Error; err != nil {
		return nil, fmt.Errorf("searching excursions: %w", err)
	}
	return excursions, nil
}

// BookExcursion marks the recommendation as booked.
func (r *Repository) BookExcursion(ctx context.Context, id uint) error {
	return r.setBooked(ctx, &Excursion{}, "excursion", id, true)
}

// UpdateExcursion replaces the free-form details of a recommendation.
func (r *Repository) UpdateExcursion(ctx context.Context, id uint, details string) error {
	res := r.db.WithContext(ctx).Model(&Excursion{}).Where("id = ?", id).
		Update("details", details)
	if res.Error != nil {
		return fmt.Errorf("updating excursion %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("no excursion found with ID %d", id)
	}
	return nil
}

// CancelExcursion releases the recommendation booking.
func (r *Repository) CancelExcursion(ctx context.Context, id uint) error {
	return r.setBooked(ctx, &Excursion{}, "excursion", id, false)
}

func (r *Repository) setBooked(ctx context.Context, mdl any, kind string, id uint, booked bool) error {
	res := r.db.WithContext(ctx).Model(mdl).Where("id = ?", id).Update("booked", booked)
	if res.Error != nil {
		return fmt.Errorf("updating %s %d: %w", kind, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("no %s found with ID %d", kind, id)
	}
	return nil
}
