package router

var (
	configKey           = []byte("router/config")
	routePrefix         = []byte("router/route/")
	currentOperationKey = []byte("router/swap/operation")
	currentStepKey      = []byte("router/swap/step")
)

func routeKey(pairKey string) []byte {
	buf := make([]byte, len(routePrefix)+len(pairKey))
	copy(buf, routePrefix)
	copy(buf[len(routePrefix):], pairKey)
	return buf
}
