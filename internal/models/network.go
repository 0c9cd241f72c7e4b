package models

// NetworkReading represents counters of one network interface.
// Rates are bytes per second since the previous sample and zero on the first one.
type NetworkReading struct {
	Interface     string  `json:"interface_name"`
	BytesSent     uint64  `json:"bytes_sent"`
	BytesRecv     uint64  `json:"bytes_recv"`
	PacketsSent   uint64  `json:"packets_sent"`
	PacketsRecv   uint64  `json:"packets_recv"`
	ErrorsIn      uint64  `json:"errors_in"`
	ErrorsOut     uint64  `json:"errors_out"`
	DropsIn       uint64  `json:"drops_in"`
	DropsOut      uint64  `json:"drops_out"`
	SpeedMbps     *int64  `json:"speed_mbps"`
	Duplex        *string `json:"duplex"`
	MTU           *int64  `json:"mtu"`
	BytesSentRate float64 `json:"bytes_sent_rate"`
	BytesRecvRate float64 `json:"bytes_recv_rate"`
}

// Record returns the network_metrics row for this reading
func (n NetworkReading) Record() Record {
	return Record{
		"interface_name":  n.Interface,
		"bytes_sent":      int64(n.BytesSent),
		"bytes_recv":      int64(n.BytesRecv),
		"packets_sent":    int64(n.PacketsSent),
		"packets_recv":    int64(n.PacketsRecv),
		"errors_in":       int64(n.ErrorsIn),
		"errors_out":      int64(n.ErrorsOut),
		"drops_in":        int64(n.DropsIn),
		"drops_out":       int64(n.DropsOut),
		"speed_mbps":      nullable(n.SpeedMbps),
		"duplex":          nullable(n.Duplex),
		"mtu":             nullable(n.MTU),
		"bytes_sent_rate": n.BytesSentRate,
		"bytes_recv_rate": n.BytesRecvRate,
	}
}
