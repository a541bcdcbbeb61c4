package stack

import (
	"testing"

	"adoption-infra/config"

	"github.com/stretchr/testify/assert"
)

func TestExpandIngress(t *testing.T) {
	rules := []config.IngressRule{
		{Port: 22, Description: "SSH"},
		{Port: 80, Description: "HTTP"},
	}

	got := ExpandIngress([]string{testIP, testIP2}, rules)

	assert.Equal(t, []IngressPermission{
		{CIDR: testIP, Port: 22, Description: "SSH Access from 203.0.113.10/32"},
		{CIDR: testIP, Port: 80, Description: "HTTP Access from 203.0.113.10/32"},
		{CIDR: testIP2, Port: 22, Description: "SSH Access from 198.51.100.0/24"},
		{CIDR: testIP2, Port: 80, Description: "HTTP Access from 198.51.100.0/24"},
	}, got)
}

func TestExpandIngress_Empty(t *testing.T) {
	assert.Empty(t, ExpandIngress(nil, config.DefaultHostIngress()))
	assert.Empty(t, ExpandIngress([]string{testIP}, nil))
}

func TestListenerRules(t *testing.T) {
	got := ListenerRules([]string{testIP, testIP2})

	assert.Equal(t, []ListenerRule{
		{Listener: ListenerHTTP, CIDR: testIP, Priority: 1},
		{Listener: ListenerHTTPS, CIDR: testIP, Priority: 2},
		{Listener: ListenerHTTP, CIDR: testIP2, Priority: 3},
		{Listener: ListenerHTTPS, CIDR: testIP2, Priority: 4},
	}, got)
	assert.Equal(t, "AllowHttpIP-203.0.113.10/32", got[0].ID())
	assert.Equal(t, "AllowHttpsIP-198.51.100.0/24", got[3].ID())
}
