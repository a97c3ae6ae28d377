package hexconv

// Invalid marks a byte that isn't a hexadecimal digit in Halfbyte.
const Invalid = 0xff

// Halfbyte maps a hex digit character to its value. Any other character is Invalid.
var Halfbyte = func() (table [256]byte) {
	for i := range table {
		table[i] = Invalid
	}

	for c := byte('0'); c <= '9'; c++ {
		table[c] = c - '0'
	}

	for c := byte('a'); c <= 'f'; c++ {
		table[c] = c - 'a' + 10
		table[c-'a'+'A'] = c - 'a' + 10
	}

	return table
}()

// Parse returns the value of a hex digit and whether the char was one.
func Parse(char byte) (value byte, ok bool) {
	value = Halfbyte[char]
	return value, value != Invalid
}
