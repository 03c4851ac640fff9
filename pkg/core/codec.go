package core

// emptyObject is what an unencodable value is published as.
var emptyObject = []byte("{}")

// EncodeOrEmpty encodes v as JSON. On failure it logs the error and returns
// the empty object {} so a publish never fails because of its payload.
func EncodeOrEmpty(v interface{}, logger Logger) []byte {
	data, err := JSONEncode(v)
	if err != nil {
		if logger != nil {
			logger.Errorf("payload of type %T could not be encoded, publishing {}: %v", v, err)
		}
		out := make([]byte, len(emptyObject))
		copy(out, emptyObject)
		return out
	}
	return data
}
