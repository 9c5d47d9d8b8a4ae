package logging

import "go.uber.org/zap"

// New builds the application logger. Development mode gets the console
// encoder; production gets JSON.
func New(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
