package wsgateway

import "encoding/json"

// encodeFrame flattens payload's fields alongside a "type" discriminant
// set to topicName, producing the single JSON object a client expects
// on the wire for every outbound topic (ws.control, error, welcome, or
// a plugin's broadcast payload).
func encodeFrame(topicName string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]any)
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, err
		}
	}
	fields["type"] = topicName
	return json.Marshal(fields)
}
