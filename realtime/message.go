package realtime

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// Server→client topics carried on the multiplexed connection
const (
	TopicLocationUpdate = "location_update"
	TopicEmergencyCall  = "new_emergency_call"
	TopicAssignment     = "new_assignment"
)

// Client→server control events
const (
	eventSubscribeLocations   = "subscribe_location_updates"
	eventUnsubscribeLocations = "unsubscribe_location_updates"
	eventSubscribeEmergencies = "subscribe_emergency_calls"
	eventSubscribeAssignments = "subscribe_staff_assignments"
)

// subscribeEvents maps a topic to the control event announcing interest in
// it. unsubscribeEvents only covers topics the protocol defines an explicit
// unsubscribe for; other topics simply stop dispatching locally.
var (
	subscribeEvents = map[string]string{
		TopicLocationUpdate: eventSubscribeLocations,
		TopicEmergencyCall:  eventSubscribeEmergencies,
		TopicAssignment:     eventSubscribeAssignments,
	}
	unsubscribeEvents = map[string]string{
		TopicLocationUpdate: eventUnsubscribeLocations,
	}
)

// Message is the outbound JSON frame
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// inboundFrame defers payload decoding to the subscriber
type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// LocationUpdate is a position sample for one ambulance
type LocationUpdate struct {
	AmbulanceID string   `json:"ambulanceId" validate:"required"`
	Latitude    float64  `json:"latitude" validate:"min=-90,max=90"`
	Longitude   float64  `json:"longitude" validate:"min=-180,max=180"`
	Timestamp   string   `json:"timestamp" validate:"required"`
	Speed       *float64 `json:"speed,omitempty"`
	Heading     *float64 `json:"heading,omitempty"`
}

// EmergencyCall is an inbound dispatch notification
type EmergencyCall struct {
	ID          string `json:"id" validate:"required"`
	AmbulanceID string `json:"ambulanceId,omitempty"`
	Location    struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Address   string  `json:"address"`
	} `json:"location"`
	Priority          string `json:"priority"`
	Status            string `json:"status"`
	Description       string `json:"description"`
	CallerName        string `json:"callerName"`
	CallerPhone       string `json:"callerPhone"`
	EstimatedPatients int    `json:"estimatedPatients"`
}

// Assignment is an inbound staff task notification
type Assignment struct {
	ID            string `json:"id" validate:"required"`
	StaffID       string `json:"staffId" validate:"required"`
	PatientID     string `json:"patientId,omitempty"`
	BedID         string `json:"bedId,omitempty"`
	TaskType      string `json:"taskType"`
	Description   string `json:"description"`
	Priority      string `json:"priority"`
	Status        string `json:"status"`
	ScheduledTime string `json:"scheduledTime,omitempty"`
}

var validate = validator.New()

// payloadValidators checks required fields of known topics before dispatch.
// Payloads stay opaque beyond that; unknown topics pass through untouched.
var payloadValidators = map[string]func(json.RawMessage) error{
	TopicLocationUpdate: func(data json.RawMessage) error {
		var update LocationUpdate
		return decodeAndValidate(data, &update)
	},
	TopicEmergencyCall: func(data json.RawMessage) error {
		var call EmergencyCall
		return decodeAndValidate(data, &call)
	},
	TopicAssignment: func(data json.RawMessage) error {
		var assignment Assignment
		return decodeAndValidate(data, &assignment)
	},
}

func decodeAndValidate(data json.RawMessage, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrap(err, "unmarshal payload")
	}
	return validate.Struct(out)
}
