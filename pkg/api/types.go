// SPDX-License-Identifier: MIT

// Package api defines the Eureka REST wire format shared by the SDK
// and the server. Eureka encodes everything in nested wrappers
// ({"instance": ...}, {"applications": ...}) with a couple of
// XML-attribute leftovers ("$", "@enabled", "@class") kept for
// compatibility with the Netflix servers.
package api

// Status is the instance status as understood by Eureka.
type Status string

const (
	StatusUp           Status = "UP"
	StatusDown         Status = "DOWN"
	StatusStarting     Status = "STARTING"
	StatusOutOfService Status = "OUT_OF_SERVICE"
	StatusUnknown      Status = "UNKNOWN"
)

// Valid returns true if the status is a known value.
func (s Status) Valid() bool {
	switch s {
	case StatusUp, StatusDown, StatusStarting, StatusOutOfService, StatusUnknown:
		return true
	default:
		return false
	}
}

// String returns the wire representation.
func (s Status) String() string {
	return string(s)
}

// Port is the Eureka port structure. "$" carries the number and
// "@enabled" whether the port is in use.
type Port struct {
	Value   int  `json:"$"`
	Enabled bool `json:"@enabled"`
}

// LeaseInfo carries the advisory lease parameters sent at
// registration. The server owns actual expiry enforcement.
type LeaseInfo struct {
	DurationInSecs        int   `json:"durationInSecs,omitempty"`
	RenewalIntervalInSecs int   `json:"renewalIntervalInSecs,omitempty"`
	RegistrationTimestamp int64 `json:"registrationTimestamp,omitempty"`
	LastRenewalTimestamp  int64 `json:"lastRenewalTimestamp,omitempty"`
}

// DataCenterInfo tags the datacenter an instance runs in. Outside AWS
// the class is always MyDataCenterInfo/MyOwn.
type DataCenterInfo struct {
	Class string `json:"@class"`
	Name  string `json:"name"`
}

// DefaultDataCenterInfo returns the non-AWS datacenter tag.
func DefaultDataCenterInfo() DataCenterInfo {
	return DataCenterInfo{
		Class: "com.netflix.appinfo.MyDataCenterInfo",
		Name:  "MyOwn",
	}
}

// Instance is the instance descriptor, both as sent at registration
// and as returned by queries.
type Instance struct {
	InstanceID       string         `json:"instanceId"`
	App              string         `json:"app"`
	HostName         string         `json:"hostName"`
	IPAddr           string         `json:"ipAddr"`
	VipAddress       string         `json:"vipAddress,omitempty"`
	SecureVipAddress string         `json:"secureVipAddress,omitempty"`
	Status           Status         `json:"status,omitempty"`
	OverriddenStatus Status         `json:"overriddenstatus,omitempty"`
	Port             *Port          `json:"port,omitempty"`
	SecurePort       *Port          `json:"securePort,omitempty"`
	LeaseInfo        *LeaseInfo     `json:"leaseInfo,omitempty"`
	DataCenterInfo   DataCenterInfo `json:"dataCenterInfo"`
	HealthCheckURL   string         `json:"healthCheckUrl,omitempty"`
	StatusPageURL    string         `json:"statusPageUrl,omitempty"`
	HomePageURL      string         `json:"homePageUrl,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// InstanceEnvelope wraps a single instance payload.
type InstanceEnvelope struct {
	Instance Instance `json:"instance"`
}

// Application groups the instances registered under one app name.
type Application struct {
	Name      string     `json:"name"`
	Instances []Instance `json:"instance"`
}

// ApplicationEnvelope wraps a single application payload.
type ApplicationEnvelope struct {
	Application Application `json:"application"`
}

// Applications is the full registry listing.
type Applications struct {
	VersionsDelta string        `json:"versions__delta,omitempty"`
	AppsHashcode  string        `json:"apps__hashcode,omitempty"`
	Applications  []Application `json:"application"`
}

// ApplicationsEnvelope wraps the registry listing payload.
type ApplicationsEnvelope struct {
	Applications Applications `json:"applications"`
}
