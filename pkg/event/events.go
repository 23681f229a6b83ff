package event

// SourceChange announces a new media URL for one player.
type SourceChange struct {
	Player string `json:"player"`
	URL    string `json:"url"`
}

func (m *SourceChange) Type() EventType {
	return TypeSourceChanged
}

// ErrorMessage reports a rejected intent back to the sender.
type ErrorMessage struct {
	Message string `json:"message"`
}

func (m *ErrorMessage) Type() EventType {
	return TypeError
}

var _ DataInterface = (*SourceChange)(nil)
var _ DataInterface = (*ErrorMessage)(nil)
