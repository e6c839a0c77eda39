package i2c

import "tinygo.org/x/drivers"

// Scan probes every non-reserved 7-bit address with an empty write and
// appends the ones that acknowledge to found.
func Scan(bus drivers.I2C, found []uint8) []uint8 {
	for addr := uint8(0x08); addr <= 0x77; addr++ {
		if bus.Tx(uint16(addr), nil, nil) == nil {
			found = append(found, addr)
		}
	}
	return found
}
