package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/transitwatch/transitwatch/pkg/utils"
)

// Route represents a transit route
type Route struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Stop represents a stop served by a route
type Stop struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Subscription represents a (route, stop) pair the user watches
type Subscription struct {
	ID      string `json:"id"`
	RouteID string `json:"routeId"`
	StopID  string `json:"stopId"`
}

// Arrival represents one upcoming vehicle arrival at a stop
type Arrival struct {
	RouteID     string    `json:"routeId"`
	StopID      string    `json:"stopId"`
	ExpectedAt  time.Time `json:"expectedAt"`
	VehicleID   string    `json:"vehicleId,omitempty"`
	Destination string    `json:"destination,omitempty"`
}

// Minutes returns whole minutes until the arrival, never negative
func (a Arrival) Minutes() int {
	m := int(time.Until(a.ExpectedAt).Minutes())
	if m < 0 {
		return 0
	}
	return m
}

// ListSubscriptions returns the user's subscriptions
func (c *Client) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	var subscriptions []Subscription
	if err := c.getJSON(ctx, "/subscriptions", &subscriptions); err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return subscriptions, nil
}

// CreateSubscription subscribes the user to a (route, stop) pair
func (c *Client) CreateSubscription(ctx context.Context, routeID, stopID string) (*Subscription, error) {
	resp, err := c.Do(ctx, http.MethodPost, "/subscriptions", map[string]string{
		"routeId": routeID,
		"stopId":  stopID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}
	defer utils.SafeCloseResponse(resp)

	if err := utils.CheckHTTPResponse(resp, c.baseURL+"/subscriptions"); err != nil {
		return nil, err
	}

	var subscription Subscription
	if err := decodeBody(resp, &subscription); err != nil {
		return nil, err
	}
	return &subscription, nil
}

// DeleteSubscription removes a subscription by ID
func (c *Client) DeleteSubscription(ctx context.Context, id string) error {
	path := "/subscriptions/" + url.PathEscape(id)
	resp, err := c.Do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	defer utils.SafeCloseResponse(resp)

	return utils.CheckHTTPResponse(resp, c.baseURL+path)
}

// Arrivals returns the upcoming arrivals for a (route, stop) pair
func (c *Client) Arrivals(ctx context.Context, routeID, stopID string) ([]Arrival, error) {
	path := fmt.Sprintf("/arrivals/%s/%s", url.PathEscape(routeID), url.PathEscape(stopID))
	var arrivals []Arrival
	if err := c.getJSON(ctx, path, &arrivals); err != nil {
		return nil, fmt.Errorf("failed to fetch arrivals: %w", err)
	}
	return arrivals, nil
}

// ListRoutes returns all routes. Routes change rarely, so results are
// served from a TTL cache.
func (c *Client) ListRoutes(ctx context.Context) ([]Route, error) {
	if cached, found := c.refCache.Get("routes"); found {
		return cached.([]Route), nil
	}

	var routes []Route
	if err := c.getJSON(ctx, "/routes", &routes); err != nil {
		return nil, fmt.Errorf("failed to list routes: %w", err)
	}

	c.refCache.Set("routes", routes)
	return routes, nil
}

// ListStops returns the stops served by a route, cached like routes
func (c *Client) ListStops(ctx context.Context, routeID string) ([]Stop, error) {
	cacheKey := "stops:" + routeID
	if cached, found := c.refCache.Get(cacheKey); found {
		return cached.([]Stop), nil
	}

	path := fmt.Sprintf("/routes/%s/stops", url.PathEscape(routeID))
	var stops []Stop
	if err := c.getJSON(ctx, path, &stops); err != nil {
		return nil, fmt.Errorf("failed to list stops: %w", err)
	}

	c.refCache.Set(cacheKey, stops)
	return stops, nil
}
