package stack

import (
	"fmt"

	"adoption-infra/config"

	"github.com/aws/aws-cdk-go/awscdk/v2/awsec2"
	"github.com/aws/jsii-runtime-go"
)

// IngressPermission is one TCP rule from one CIDR.
type IngressPermission struct {
	CIDR        string
	Port        int
	Description string
}

// ExpandIngress opens every rule to every CIDR. The result is CIDR-major:
// all ports for the first CIDR, then all ports for the next.
func ExpandIngress(cidrs []string, rules []config.IngressRule) []IngressPermission {
	out := make([]IngressPermission, 0, len(cidrs)*len(rules))
	for _, cidr := range cidrs {
		for _, r := range rules {
			out = append(out, IngressPermission{
				CIDR:        cidr,
				Port:        r.Port,
				Description: fmt.Sprintf("%s Access from %s", r.Description, cidr),
			})
		}
	}
	return out
}

func applyIngress(sg awsec2.SecurityGroup, perms []IngressPermission) {
	for _, p := range perms {
		sg.AddIngressRule(
			awsec2.Peer_Ipv4(jsii.String(p.CIDR)),
			awsec2.Port_Tcp(jsii.Number(p.Port)),
			jsii.String(p.Description),
			nil,
		)
	}
}

// ListenerKind says which ALB listener a source-IP rule belongs to.
type ListenerKind string

const (
	ListenerHTTP  ListenerKind = "Http"
	ListenerHTTPS ListenerKind = "Https"
)

// ListenerRule forwards traffic from one source CIDR on one listener.
type ListenerRule struct {
	Listener ListenerKind
	CIDR     string
	Priority int
}

// ID is the construct id of the listener action. The CIDR is used as is;
// constructs rewrites its "/" to "--".
func (r ListenerRule) ID() string {
	return fmt.Sprintf("Allow%sIP-%s", r.Listener, r.CIDR)
}

// ListenerRules gives each CIDR an HTTP then an HTTPS rule. Priorities are
// unique across both listeners, starting at 1.
func ListenerRules(cidrs []string) []ListenerRule {
	out := make([]ListenerRule, 0, 2*len(cidrs))
	priority := 1
	for _, cidr := range cidrs {
		for _, kind := range []ListenerKind{ListenerHTTP, ListenerHTTPS} {
			out = append(out, ListenerRule{Listener: kind, CIDR: cidr, Priority: priority})
			priority++
		}
	}
	return out
}
