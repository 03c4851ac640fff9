package core

// Verticle is a unit of deployment.
// Start registers consumers and timers; Stop releases them.
type Verticle interface {
	// Start is called when the verticle is deployed
	Start(ctx FluxorContext) error

	// Stop is called when the verticle is undeployed
	Stop(ctx FluxorContext) error
}

// NamedVerticle can be implemented to give deployments a readable name in logs.
type NamedVerticle interface {
	Verticle
	Name() string
}
