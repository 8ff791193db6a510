package realtime

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// Typed subscription helpers for the dashboard pages. Payloads that fail
// to decode are dropped; required-field validation already happened before
// dispatch.

// SubscribeLocationUpdates delivers ambulance position samples
func (c *Channel) SubscribeLocationUpdates(fn func(LocationUpdate)) Handle {
	return c.Subscribe(TopicLocationUpdate, func(payload []byte) {
		var update LocationUpdate
		if err := json.Unmarshal(payload, &update); err != nil {
			log.Err(err).Msg("Failed to decode location update")
			return
		}
		fn(update)
	})
}

// SubscribeEmergencyCalls delivers new emergency call notifications
func (c *Channel) SubscribeEmergencyCalls(fn func(EmergencyCall)) Handle {
	return c.Subscribe(TopicEmergencyCall, func(payload []byte) {
		var call EmergencyCall
		if err := json.Unmarshal(payload, &call); err != nil {
			log.Err(err).Msg("Failed to decode emergency call")
			return
		}
		fn(call)
	})
}

// SubscribeAssignments delivers task notifications for one staff member;
// the staffId rides on the subscribe control message
func (c *Channel) SubscribeAssignments(staffID string, fn func(Assignment)) Handle {
	return c.Subscribe(TopicAssignment, func(payload []byte) {
		var assignment Assignment
		if err := json.Unmarshal(payload, &assignment); err != nil {
			log.Err(err).Msg("Failed to decode assignment")
			return
		}
		fn(assignment)
	}, WithParams(map[string]string{"staffId": staffID}))
}

// PublishLocation emits a best-effort position sample from the driver app
func (c *Channel) PublishLocation(update LocationUpdate) {
	c.Publish(TopicLocationUpdate, update)
}
