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

package assistant

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tripwise/concierge/model"
	"github.com/tripwise/concierge/tool"
)

// Delegation marker operation names. The primary assistant emits exactly one
// of these to route control to a domain assistant; the marker itself performs
// no side effect.
const (
	ToFlightBookingName  = "to_flight_booking_assistant"
	ToCarRentalName      = "to_car_rental_assistant"
	ToHotelBookingName   = "to_hotel_booking_assistant"
	ToExcursionName      = "to_excursion_assistant"
	ToStoreProductsName  = "to_store_products_assistant"
	ToStoreOrdersName    = "to_store_orders_assistant"
	ToFormSubmissionName = "to_form_submission_assistant"
	ToBlogSearchName     = "to_blog_search_assistant"
)

type toFlightBookingArgs struct {
	// Follow-up questions the flight assistant should clarify before proceeding.
	Request string `json:"request"`
}

type toCarRentalArgs struct {
	Location  string `json:"location"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Request   string `json:"request"`
}

type toHotelBookingArgs struct {
	Location     string `json:"location"`
	CheckinDate  string `json:"checkin_date"`
	CheckoutDate string `json:"checkout_date"`
	Request      string `json:"request"`
}

type toExcursionArgs struct {
	Location string `json:"location"`
	Request  string `json:"request"`
}

type toStoreProductsArgs struct {
	Query string `json:"query"`
}

type toStoreOrdersArgs struct {
	Email   string `json:"email"`
	Request string `json:"request"`
}

type toFormSubmissionArgs struct {
	Request string `json:"request"`
}

type toBlogSearchArgs struct {
	Query string `json:"query"`
}

// RegisterDelegations adds every delegation marker and the shared escalation
// tool to the registry. The markers only exist so the routing graph can
// dispatch on them; running one directly just restates the hand-off.
func RegisterDelegations(reg *tool.Registry) error {
	type marker struct {
		t      tool.Tool
		target tool.Domain
	}
	markers := []marker{
		{delegationTool[toFlightBookingArgs](ToFlightBookingName,
			"Transfer work to the assistant handling flight updates and cancellations."), tool.DomainFlight},
		{delegationTool[toCarRentalArgs](ToCarRentalName,
			"Transfer work to the assistant handling car rental bookings."), tool.DomainCar},
		{delegationTool[toHotelBookingArgs](ToHotelBookingName,
			"Transfer work to the assistant handling hotel bookings, modifications, and cancellations."), tool.DomainHotel},
		{delegationTool[toExcursionArgs](ToExcursionName,
			"Transfer work to the assistant handling trip recommendations and excursion bookings."), tool.DomainExcursion},
		{delegationTool[toStoreProductsArgs](ToStoreProductsName,
			"Transfer work to the assistant handling product searches."), tool.DomainStore},
		{delegationTool[toStoreOrdersArgs](ToStoreOrdersName,
			"Transfer work to the assistant handling order lookups."), tool.DomainStore},
		{delegationTool[toFormSubmissionArgs](ToFormSubmissionName,
			"Transfer work to the assistant handling contact form submissions."), tool.DomainForm},
		{delegationTool[toBlogSearchArgs](ToBlogSearchName,
			"Transfer work to the assistant handling blog searches."), tool.DomainBlog},
	}
	for _, m := range markers {
		if err := reg.RegisterDelegation(m.t, m.target); err != nil {
			return err
		}
	}
	// The escalation tool is shared by every domain assistant and must be
	// classified safe so calling it never suspends the turn.
	return reg.Register(NewCompleteOrEscalate(), tool.ClassSafe, tool.DomainShared)
}

func delegationTool[In any](name, description string) tool.Tool {
	return tool.MustFunctionTool(name, description, func(ctx context.Context, in In) (string, error) {
		return fmt.Sprintf("Delegated to %s.", name), nil
	})
}

const primaryInstruction = "You are a helpful customer support assistant for a travel company. " +
	"Your primary role is to search for flight information and company policies to answer customer queries. " +
	"When customers need help with specialized services, delegate to the appropriate assistant:\n" +
	"- Flight updates/cancellations: " + ToFlightBookingName + "\n" +
	"- Car rental booking/modification/cancellation: " + ToCarRentalName + "\n" +
	"- Hotel booking/modification/cancellation/status: " + ToHotelBookingName + "\n" +
	"- Trip recommendations/excursions: " + ToExcursionName + "\n" +
	"- Product searches: " + ToStoreProductsName + "\n" +
	"- Order lookups (with email verification): " + ToStoreOrdersName + "\n" +
	"- Form submissions: " + ToFormSubmissionName + "\n" +
	"- Blog searches: " + ToBlogSearchName + "\n\n" +
	"Only delegate to ONE assistant at a time. Never make multiple delegation calls in a single response. " +
	"The user is not aware of the different specialized assistants, so do not mention them; " +
	"just quietly delegate through function calls. " +
	"When searching, be persistent. Expand your query bounds if the first search returns no results.\n\n" +
	"Current user flight information:\n<Flights>\n{user_info}\n</Flights>\n" +
	"Current time: {time}."

// NewPrimary builds the dispatcher assistant. Its tool set is the primary
// domain's own safe tools plus every delegation marker.
func NewPrimary(handler model.Handler, reg *tool.Registry, log zerolog.Logger) *Assistant {
	tools := reg.DomainTools(tool.DomainPrimary)
	for _, name := range delegationNames() {
		if e, ok := reg.Lookup(name); ok {
			tools = append(tools, e.Tool)
		}
	}
	return Builder{
		Name:        "Primary Assistant",
		Domain:      tool.DomainPrimary,
		Instruction: primaryInstruction,
		Tools:       tools,
		Handler:     handler,
		Logger:      log,
	}.Assistant()
}

func delegationNames() []string {
	return []string{
		ToFlightBookingName,
		ToCarRentalName,
		ToHotelBookingName,
		ToExcursionName,
		ToStoreProductsName,
		ToStoreOrdersName,
		ToFormSubmissionName,
		ToBlogSearchName,
	}
}
