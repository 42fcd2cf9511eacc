package types

const redactedPlaceholder = "***REDACTED***"

// SecretString holds a credential loaded from the environment or SSM. It
// prints and marshals as a placeholder so config dumps and log lines never
// carry the value.
type SecretString string

func (s SecretString) String() string {
	return redactedPlaceholder
}

func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redactedPlaceholder + `"`), nil
}

// Unmask returns the raw value. Call it only at the point of use.
func (s SecretString) Unmask() string {
	return string(s)
}
