package worker

// HandlerRegistrar is implemented by services that subscribe to the
// event bus.
type HandlerRegistrar interface {
	RegisterHandlers()
}

// StartNotificationWorker registers event handlers for each service.
func StartNotificationWorker(services ...HandlerRegistrar) {
	for _, svc := range services {
		if svc == nil {
			continue
		}
		svc.RegisterHandlers()
	}
}
