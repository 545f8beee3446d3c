// SPDX-License-Identifier: AGPL-3.0-or-later

package http

import (
	"sort"

	"github.com/btouchard/eureka/internal/domain"
	"github.com/btouchard/eureka/pkg/api"
)

// toWireInstance maps a domain registration onto the Eureka wire
// format. The advertised status is the effective one; the raw
// override rides along in overriddenstatus.
func toWireInstance(reg *domain.Registration) api.Instance {
	inst := api.Instance{
		InstanceID:       reg.InstanceID,
		App:              reg.AppName,
		HostName:         reg.Hostname,
		IPAddr:           reg.IPAddr,
		VipAddress:       reg.VIPAddress,
		SecureVipAddress: reg.SVIPAddress,
		Status:           api.Status(reg.EffectiveStatus()),
		OverriddenStatus: api.Status(reg.Override),
		Port: &api.Port{
			Value:   reg.Port,
			Enabled: reg.PortEnabled,
		},
		LeaseInfo: &api.LeaseInfo{
			DurationInSecs:        reg.Lease.DurationSecs,
			RenewalIntervalInSecs: reg.Lease.RenewalIntervalSecs,
			RegistrationTimestamp: reg.Lease.RegisteredAt.UnixMilli(),
			LastRenewalTimestamp:  reg.Lease.LastRenewedAt.UnixMilli(),
		},
		DataCenterInfo: api.DefaultDataCenterInfo(),
		HealthCheckURL: reg.HealthCheckURL,
		StatusPageURL:  reg.StatusPageURL,
		HomePageURL:    reg.HomePageURL,
		Metadata:       reg.Metadata,
	}
	if reg.SecurePortEnabled || reg.SecurePort != 0 {
		inst.SecurePort = &api.Port{
			Value:   reg.SecurePort,
			Enabled: reg.SecurePortEnabled,
		}
	}
	return inst
}

// toWireApplications groups registrations by app name, sorted for a
// stable listing.
func toWireApplications(regs []*domain.Registration) api.Applications {
	byApp := make(map[string][]api.Instance)
	for _, reg := range regs {
		byApp[reg.AppName] = append(byApp[reg.AppName], toWireInstance(reg))
	}

	names := make([]string, 0, len(byApp))
	for name := range byApp {
		names = append(names, name)
	}
	sort.Strings(names)

	apps := api.Applications{Applications: make([]api.Application, 0, len(names))}
	for _, name := range names {
		apps.Applications = append(apps.Applications, api.Application{
			Name:      name,
			Instances: byApp[name],
		})
	}
	return apps
}
