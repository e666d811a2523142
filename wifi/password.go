package wifi

// IsValidPassword checks that password has a format the given cipher can use.
//
// WEP keys are either 10, 26 or 58 hex digits, or 5, 13 or 29 ASCII
// characters. WPA and WPA2 passphrases are 8 to 63 printable ASCII characters.
// Open networks and vendor ciphers accept anything.
func IsValidPassword(password string, cipher CipherAlgorithm) bool {
	switch {
	case cipher == CipherNone:
		return true
	case cipher.IsWEP():
		return isValidWEPKey(password)
	case cipher == CipherTKIP, cipher == CipherCCMP, cipher == CipherUseGroup:
		return isValidPassphrase(password)
	}
	return true
}

func isValidWEPKey(key string) bool {
	switch len(key) {
	case 10, 26, 58:
		return isHex(key)
	case 5, 13, 29:
		return isPrintableASCII(key)
	}
	return false
}

func isValidPassphrase(passphrase string) bool {
	if len(passphrase) < 8 || len(passphrase) > 63 {
		return false
	}
	return isPrintableASCII(passphrase)
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

func isPrintableASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}
