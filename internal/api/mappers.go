package api

import (
	"github.com/lexwatch/lexwatch/internal/alerts"
	"github.com/lexwatch/lexwatch/internal/channels"
	"github.com/lexwatch/lexwatch/internal/correlation"
	"github.com/lexwatch/lexwatch/internal/database"
)

// GroupToResponse flattens a correlation group for the API.
func GroupToResponse(g *correlation.AlertGroup) GroupResponse {
	resp := GroupResponse{
		ID:         g.ID,
		AlertIDs:   make([]string, len(g.Alerts)),
		AlertCount: len(g.Alerts),
		Confidence: g.Confidence,
		Timestamp:  g.Timestamp,
		Resolved:   g.Resolved,
	}
	for i, a := range g.Alerts {
		resp.AlertIDs[i] = a.ID
	}
	if len(g.Alerts) > 0 {
		resp.Severity = g.Alerts[0].Severity
	}
	if g.Pattern != nil {
		resp.PatternID = g.Pattern.ID
		resp.PatternName = g.Pattern.Name
		resp.Severity = g.Pattern.Severity
		resp.Recommendations = g.Pattern.Recommendations
	}
	return resp
}

// GroupsToResponses converts groups, keeping order.
func GroupsToResponses(groups []*correlation.AlertGroup) []GroupResponse {
	out := make([]GroupResponse, len(groups))
	for i, g := range groups {
		out[i] = GroupToResponse(g)
	}
	return out
}

// RecordsToAlerts converts archived rows back to alerts.
func RecordsToAlerts(records []database.AlertRecord) []*alerts.Alert {
	out := make([]*alerts.Alert, len(records))
	for i := range records {
		out[i] = records[i].ToAlert()
	}
	return out
}

// ChannelsToStatus lists channel names and whether they are configured.
func ChannelsToStatus(chs []channels.Channel) []ChannelStatus {
	out := make([]ChannelStatus, len(chs))
	for i, ch := range chs {
		out[i] = ChannelStatus{Name: ch.Name(), Configured: ch.IsConfigured()}
	}
	return out
}

// PatternFromRequest builds a pattern from the create request.
func PatternFromRequest(req CreatePatternRequest) correlation.Pattern {
	return correlation.Pattern{
		ID:              req.ID,
		Name:            req.Name,
		Description:     req.Description,
		Sequence:        req.Sequence,
		Severity:        alerts.Severity(req.Severity),
		Recommendations: req.Recommendations,
	}
}
