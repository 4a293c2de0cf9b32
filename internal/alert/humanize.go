package alert

import "fmt"

// BytesToHuman formats a byte count with a binary-ish unit ladder.
func BytesToHuman(n float64) string {
	for _, unit := range []string{"B", "KB", "MB", "GB", "TB"} {
		if n < 1024 && n > -1024 {
			return fmt.Sprintf("%.1f %s", n, unit)
		}
		n /= 1024
	}
	return fmt.Sprintf("%.1f PB", n)
}

// BpsToHuman formats a bit rate.
func BpsToHuman(bps float64) string {
	for _, unit := range []string{"bps", "Kbps", "Mbps", "Gbps", "Tbps"} {
		if bps < 1000 && bps > -1000 {
			return fmt.Sprintf("%.1f %s", bps, unit)
		}
		bps /= 1000
	}
	return fmt.Sprintf("%.1f Pbps", bps)
}

// PpsToHuman formats a packet rate.
func PpsToHuman(pps float64) string {
	for _, unit := range []string{"pps", "Kpps", "Mpps"} {
		if pps < 1000 && pps > -1000 {
			return fmt.Sprintf("%.1f %s", pps, unit)
		}
		pps /= 1000
	}
	return fmt.Sprintf("%.1f Gpps", pps)
}
