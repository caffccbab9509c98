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
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tripwise/concierge/model"
	"github.com/tripwise/concierge/tool"
)

const escalationGuidance = "\n\nIf the user needs help and none of your tools are appropriate for it, " +
	"call " + CompleteOrEscalateName + " to let the primary host assistant take control. " +
	"Do not waste the user's time. Do not make up invalid tools or functions." +
	"\nCurrent time: {time}."

var domainInstructions = map[tool.Domain]struct {
	name        string
	instruction string
}{
	tool.DomainFlight: {
		name: "Flight Updates & Booking Assistant",
		instruction: "You are a specialized assistant for handling flight updates and cancellations. " +
			"The primary assistant delegates work to you whenever the user needs to change or cancel a booked flight. " +
			"Confirm the updated flight details with the customer and inform them of any additional fees. " +
			"Remember that a change or cancellation is not completed until after the relevant tool has successfully been used. " +
			"\n\nCurrent user flight information:\n<Flights>\n{user_info}\n</Flights>",
	},
	tool.DomainHotel: {
		name: "Hotel Booking Assistant",
		instruction: "You are a specialized assistant for handling hotel bookings, modifications, and cancellations. " +
			"You can search for available hotels, book hotels, update existing bookings, and cancel bookings. " +
			"When the user says 'cancel it' or 'cancel my booking', identify the hotel from the conversation history " +
			"and always use the cancel tool rather than a text-only response. " +
			"Remember that operations aren't completed until after the relevant tool has successfully been used.",
	},
	tool.DomainCar: {
		name: "Car Rental Assistant",
		instruction: "You are a specialized assistant for handling car rental bookings. " +
			"You can search for available rentals, book, update, and cancel them based on the user's requests. " +
			"Remember that operations aren't completed until after the relevant tool has successfully been used.",
	},
	tool.DomainExcursion: {
		name: "Trip Recommendation Assistant",
		instruction: "You are a specialized assistant for handling trip recommendations and excursion bookings. " +
			"You can search for recommendations, book, update, and cancel excursions based on the user's requests. " +
			"Remember that operations aren't completed until after the relevant tool has successfully been used.",
	},
	tool.DomainStore: {
		name: "Store Assistant",
		instruction: "You are a specialized assistant for product and order queries in the online store. " +
			"You can search products and look up orders. For order lookups, verify the customer's email first. " +
			"Never reveal another customer's order details.",
	},
	tool.DomainForm: {
		name: "Form Submission Assistant",
		instruction: "You are a specialized assistant for submitting contact forms on the user's behalf. " +
			"Collect the required fields before submitting and confirm the submission result to the user.",
	},
	tool.DomainBlog: {
		name: "Blog Search Assistant",
		instruction: "You are a specialized assistant for searching blog posts. " +
			"Summarize matching posts and share their links.",
	},
}

// NewDomain builds the assistant for one domain, binding the domain's safe
// and sensitive tools plus the escalation tool from the registry.
func NewDomain(domain tool.Domain, handler model.Handler, reg *tool.Registry, log zerolog.Logger) (*Assistant, error) {
	meta, ok := domainInstructions[domain]
	if !ok {
		return nil, fmt.Errorf("no assistant defined for domain %q", domain)
	}
	tools := reg.DomainTools(domain)
	if e, ok := reg.Lookup(CompleteOrEscalateName); ok {
		tools = append(tools, e.Tool)
	}
	return Builder{
		Name:        meta.name,
		Domain:      domain,
		Instruction: meta.instruction + escalationGuidance,
		Tools:       tools,
		Handler:     handler,
		Logger:      log,
	}.Assistant(), nil
}

// DisplayName returns the assistant display name of a domain, used in the
// delegation entry note.
func DisplayName(domain tool.Domain) string {
	if meta, ok := domainInstructions[domain]; ok {
		return meta.name
	}
	return string(domain)
}
