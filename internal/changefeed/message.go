package changefeed

import (
	jsoniter "github.com/json-iterator/go"
)

// Phoenix channel events used by the realtime service
const (
	eventJoin      = "phx_join"
	eventLeave     = "phx_leave"
	eventReply     = "phx_reply"
	eventError     = "phx_error"
	eventClose     = "phx_close"
	eventHeartbeat = "heartbeat"
	eventChanges   = "postgres_changes"
	eventSystem    = "system"

	heartbeatTopic = "phoenix"
	topicPrefix    = "realtime:"
)

// Message is the Phoenix channel envelope
type Message struct {
	Topic   string              `json:"topic"`
	Event   string              `json:"event"`
	Payload jsoniter.RawMessage `json:"payload"`
	Ref     string              `json:"ref,omitempty"`
	JoinRef string              `json:"join_ref,omitempty"`
}

type joinPayload struct {
	Config      joinConfig `json:"config"`
	AccessToken string     `json:"access_token,omitempty"`
}

type joinConfig struct {
	Broadcast       broadcastConfig        `json:"broadcast"`
	Presence        presenceConfig         `json:"presence"`
	PostgresChanges []postgresChangeFilter `json:"postgres_changes"`
}

type broadcastConfig struct {
	Self bool `json:"self"`
	Ack  bool `json:"ack"`
}

type presenceConfig struct {
	Key string `json:"key"`
}

type postgresChangeFilter struct {
	Event  string `json:"event"`
	Schema string `json:"schema"`
	Table  string `json:"table"`
	Filter string `json:"filter,omitempty"`
}

type replyPayload struct {
	Status   string `json:"status"`
	Response struct {
		Reason string `json:"reason"`
	} `json:"response"`
}

type changesPayload struct {
	IDs  []int64 `json:"ids"`
	Data struct {
		Schema          string              `json:"schema"`
		Table           string              `json:"table"`
		CommitTimestamp string              `json:"commit_timestamp"`
		Type            string              `json:"type"`
		Record          jsoniter.RawMessage `json:"record"`
	} `json:"data"`
}

type systemPayload struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Extension string `json:"extension"`
}

func newJoinPayload(stream Stream, accessToken string) joinPayload {
	return joinPayload{
		Config: joinConfig{
			PostgresChanges: []postgresChangeFilter{{
				Event:  EventInsert,
				Schema: "public",
				Table:  stream.Table,
				Filter: stream.FilterString(),
			}},
		},
		AccessToken: accessToken,
	}
}
