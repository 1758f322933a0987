package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

// Секторная карта для лимитов по секторам: префикс символа -> сектор.
// Файл sectors.yaml опционален, без него работаем на зашитой карте.
var defaultSectors = map[string]string{
	"XB": "Crypto",
	"ET": "Equity",
	"GC": "Commodity",
}

func loadSectors(path string) map[string]string {
	data, err := os.ReadFile(path)
	if err != nil {
		return defaultSectors
	}

	m := map[string]string{}
	if err := yaml.Unmarshal(data, &m); err != nil || len(m) == 0 {
		return defaultSectors
	}
	return m
}

// SectorFor — сектор инструмента по двухбуквенному префиксу.
func (c *Config) SectorFor(symbol string) string {
	if len(symbol) >= 2 {
		if s, ok := c.Sectors[strings.ToUpper(symbol[:2])]; ok {
			return s
		}
	}
	return "Other"
}
