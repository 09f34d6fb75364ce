package redis

import "fmt"

const ns = "skybook:v1"

func KeyFlight(flightID int64) string {
	return fmt.Sprintf("%s:flight:%d", ns, flightID)
}

func KeySearch(departure, arrival, date string) string {
	return fmt.Sprintf("%s:search:%s:%s:%s", ns, departure, arrival, date)
}

func ChannelFlightsChanged() string {
	return ns + ":flights:changed"
}
