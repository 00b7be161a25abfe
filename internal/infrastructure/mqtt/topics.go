package mqtt

import "strings"

// Topic layout for the dispatch transport.
//
//	dispatch/command/{device_id}   command messages to device adapters
//	dispatch/ack/{device_id}       acknowledgments from device adapters
//	dispatch/system/status         dispatcher online/offline status (retained)
//
// Device adapters (the BACnet/Modbus/KNX bridges) subscribe to their
// command topics and publish one acknowledgment per request ID.
const topicPrefix = "dispatch"

// Topics builds the topic strings used by the transport.
type Topics struct{}

// DeviceCommand returns the command topic for a device.
func (Topics) DeviceCommand(deviceID string) string {
	return topicPrefix + "/command/" + deviceID
}

// DeviceAck returns the acknowledgment topic for a device.
func (Topics) DeviceAck(deviceID string) string {
	return topicPrefix + "/ack/" + deviceID
}

// AckWildcard returns the subscription pattern covering all device acks.
func (Topics) AckWildcard() string {
	return topicPrefix + "/ack/+"
}

// SystemStatus returns the dispatcher status topic.
func (Topics) SystemStatus() string {
	return topicPrefix + "/system/status"
}

// DeviceFromAckTopic extracts the device ID from an ack topic, or ""
// if the topic does not match the layout.
func (Topics) DeviceFromAckTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != topicPrefix || parts[1] != "ack" {
		return ""
	}
	return parts[2]
}
