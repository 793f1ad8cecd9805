package repository

import "encoding/json"

func marshalJSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	return string(data), err
}

func unmarshalJSON(data string, v interface{}) error {
	return json.Unmarshal([]byte(data), v)
}
