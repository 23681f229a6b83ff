package event

type EventType string

const TypeSourceChanged EventType = "source-changed"
const TypePlayerState EventType = "player-state"
const TypeIntent EventType = "intent"
const TypeError EventType = "error"
