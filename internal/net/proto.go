package net

import (
	"github.com/qt2/oxwalk/internal/crowd"
)

const (
	TypeSnapshot  = "snapshot"
	TypeHeartbeat = "heartbeat"
)

type pedestrianMessage struct {
	ID          int     `json:"id"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	VX          float64 `json:"vx"`
	VY          float64 `json:"vy"`
	Active      bool    `json:"active"`
	Destination int     `json:"destination"`
}

type pathMessage struct {
	Points [][2]float64 `json:"points"`
}

type snapshotMessage struct {
	Type         string              `json:"type"`
	Tick         uint64              `json:"tick"`
	Time         float64             `json:"time"`
	Pedestrians  []pedestrianMessage `json:"pedestrians"`
	Obstacles    []pathMessage       `json:"obstacles"`
	Destinations []pathMessage       `json:"destinations"`
}

type clientMessage struct {
	Type   string `json:"type"`
	SentAt int64  `json:"sentAt"`
}

type heartbeatMessage struct {
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
	ClientTime int64  `json:"clientTime"`
}

func newSnapshotMessage(tick uint64, timeStep float64, snapshot crowd.Snapshot) snapshotMessage {
	msg := snapshotMessage{
		Type:         TypeSnapshot,
		Tick:         tick,
		Time:         float64(tick) * timeStep,
		Pedestrians:  make([]pedestrianMessage, 0, len(snapshot.Pedestrians)),
		Obstacles:    make([]pathMessage, 0, len(snapshot.Obstacles)),
		Destinations: make([]pathMessage, 0, len(snapshot.Destinations)),
	}
	for i, p := range snapshot.Pedestrians {
		msg.Pedestrians = append(msg.Pedestrians, pedestrianMessage{
			ID:          i,
			X:           p.Position.X,
			Y:           p.Position.Y,
			VX:          p.Velocity.X,
			VY:          p.Velocity.Y,
			Active:      p.Active,
			Destination: p.DestinationID,
		})
	}
	for _, o := range snapshot.Obstacles {
		msg.Obstacles = append(msg.Obstacles, toPathMessage(o.Path))
	}
	for _, d := range snapshot.Destinations {
		msg.Destinations = append(msg.Destinations, toPathMessage(d.Path))
	}
	return msg
}

func toPathMessage(path crowd.Path) pathMessage {
	points := path.Points()
	out := pathMessage{Points: make([][2]float64, len(points))}
	for i, p := range points {
		out.Points[i] = [2]float64{p.X, p.Y}
	}
	return out
}
