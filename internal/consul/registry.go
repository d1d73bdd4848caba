package consul

import (
	"fmt"

	consulapi "github.com/hashicorp/consul/api"
)

const serviceName = "instabridge"

// Registration is one bridge instance's entry in the Consul catalog.
type Registration struct {
	ID      string
	Address string
	Port    int
	Tags    []string

	// CheckURL is polled by the agent every CheckInterval. An instance that
	// stays critical for ReapAfter is removed from the catalog.
	CheckURL      string
	CheckInterval string
	CheckTimeout  string
	ReapAfter     string
}

// Registrar announces and withdraws a bridge instance.
type Registrar interface {
	Register(r Registration) error
	Deregister(r Registration) error
}

// NewRegistration describes the instance reachable at host:port.
func NewRegistration(host string, port int) Registration {
	return Registration{
		ID:            fmt.Sprintf("%s-%s", serviceName, host),
		Address:       host,
		Port:          port,
		Tags:          []string{"instagram", "bridge"},
		CheckURL:      fmt.Sprintf("http://%s:%d/health", host, port),
		CheckInterval: "10s",
		CheckTimeout:  "3s",
		ReapAfter:     "1m",
	}
}

func (r Registration) agentService() *consulapi.AgentServiceRegistration {
	return &consulapi.AgentServiceRegistration{
		ID:      r.ID,
		Name:    serviceName,
		Address: r.Address,
		Port:    r.Port,
		Tags:    r.Tags,
		Check: &consulapi.AgentServiceCheck{
			HTTP:                           r.CheckURL,
			Interval:                       r.CheckInterval,
			Timeout:                        r.CheckTimeout,
			DeregisterCriticalServiceAfter: r.ReapAfter,
		},
	}
}

// Register adds the instance and its health check to the local agent.
func (c *Client) Register(r Registration) error {
	if err := c.api.Agent().ServiceRegister(r.agentService()); err != nil {
		return fmt.Errorf("register %s: %w", r.ID, err)
	}
	return nil
}

// Deregister removes the instance from the local agent.
func (c *Client) Deregister(r Registration) error {
	if err := c.api.Agent().ServiceDeregister(r.ID); err != nil {
		return fmt.Errorf("deregister %s: %w", r.ID, err)
	}
	return nil
}
