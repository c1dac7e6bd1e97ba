package domain

import (
	"github.com/asynkron/protoactor-go/actor"
	"github.com/berfenger/gridfleet/pkg/mbframe"
)

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_FLEET        = "fleet"
	ACTOR_ID_AGENT        = "agent"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
)

type ActorRef actor.PID

type ActorRequestMixIn struct {
	ReplyToRef *ActorRef
}

type ActorRequest interface {
	ReplyTo() *ActorRef
}

func (r ActorRequestMixIn) ReplyTo() *ActorRef {
	return r.ReplyToRef
}

type ActorResponseMixIn struct {
	ResponseError error
}

func (r ActorResponseMixIn) GetResponseError() error {
	return r.ResponseError
}

func (r ActorResponseMixIn) HasResponseError() bool {
	return r.ResponseError != nil
}

type ActorResponse interface {
	GetResponseError() error
	HasResponseError() bool
}

func ErrorResponse(err error) ActorResponseMixIn {
	return ActorResponseMixIn{ResponseError: err}
}

// master

type GetFleetRefRequest struct {
	ActorRequestMixIn
}

type GetFleetRefResponse struct {
	ActorResponseMixIn
	Fleet *actor.PID
}

// fleet

type ApplyFrameRequest struct {
	ActorRequestMixIn
	ConnId string
	Frame  *mbframe.Frame
}

// ApplyFrameResponse carries the frame to send back to the peer. Response is
// nil when the request must be dropped without an answer.
type ApplyFrameResponse struct {
	ActorResponseMixIn
	Response *mbframe.Frame
}

type GetSnapshotRequest struct {
	ActorRequestMixIn
}

type GetSnapshotResponse struct {
	ActorResponseMixIn
	Snapshot Snapshot
}

type SetSlavePowerRequest struct {
	ActorRequestMixIn
	SlaveId int
	Enable  bool
}

type SetSlavePowerResponse struct {
	ActorResponseMixIn
	Telemetry *Telemetry
}

// agent

type GetAgentStateRequest struct {
	ActorRequestMixIn
}

type GetAgentStateResponse struct {
	ActorResponseMixIn
	SlaveId     int
	State       string
	Powered     bool
	ReportsSent int
	Connects    int
	Failures    int
}

type SetAgentPowerRequest struct {
	ActorRequestMixIn
	Enable bool
}

type SetAgentPowerResponse struct {
	ActorResponseMixIn
}

// mqtt

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors  []GenericSensor
	Switches []GenericSwitch
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
