package registry

// defaultFile returns the compiled-in vocabulary: the 39-country coalition
// whitelist, the COI tag registry, the per-partner clearance equivalency
// tables, and the email-domain inference table.
func defaultFile() File {
	return File{
		Countries: []string{
			// NATO members
			"ALB", "BEL", "BGR", "CAN", "HRV", "CZE", "DNK", "EST",
			"FIN", "FRA", "DEU", "GRC", "HUN", "ISL", "ITA", "LVA",
			"LTU", "LUX", "MNE", "NLD", "MKD", "NOR", "POL", "PRT",
			"ROU", "SVK", "SVN", "ESP", "SWE", "TUR", "GBR", "USA",
			// Non-NATO coalition partners
			"AUS", "NZL", "JPN", "KOR", "AUT", "CHE", "IRL",
		},
		COIs: []string{
			"NATO",
			"NATO-COSMIC",
			"FVEY",
			"AUKUS",
			"EU-RESTRICTED",
			"MPE",
			"CFBLNET",
		},
		DefaultCountry: "USA",
		Domains: map[string]string{
			// US government and military
			"army.mil":     "USA",
			"navy.mil":     "USA",
			"af.mil":       "USA",
			"uscg.mil":     "USA",
			"mail.mil":     "USA",
			"state.gov":    "USA",
			"dod.gov":      "USA",
			// Partner ministries of defence
			"mod.uk":           "GBR",
			"mod.gov.uk":       "GBR",
			"defense.gouv.fr":  "FRA",
			"intradef.gouv.fr": "FRA",
			"bundeswehr.org":   "DEU",
			"bwi.de":           "DEU",
			"difesa.it":        "ITA",
			"esercito.difesa.it": "ITA",
			"mindef.nl":        "NLD",
			"mod.gov.pl":       "POL",
			"ron.mil.pl":       "POL",
			"forces.gc.ca":     "CAN",
			"defensa.gob.es":   "ESP",
			"ejercito.mde.es":  "ESP",
			"defence.gov.au":   "AUS",
			"nzdf.mil.nz":      "NZL",
			// Defence contractors
			"lockheed.com":    "USA",
			"lmco.com":        "USA",
			"boeing.com":      "USA",
			"northropgrumman.com": "USA",
			"raytheon.com":    "USA",
			"baesystems.com":  "GBR",
			"thalesgroup.com": "FRA",
			"airbus.com":      "DEU",
			"leonardo.com":    "ITA",
			"saab.se":         "SWE",
		},
		ClearanceMaps: map[string]map[string]string{
			"usa":      canonicalClearances(),
			"can":      canonicalClearances(),
			"gbr":      withCanonical(map[string]string{
				"OFFICIAL":           "UNCLASSIFIED",
				"OFFICIAL-SENSITIVE": "CONFIDENTIAL",
				"UK_SECRET":          "SECRET",
				"UK_TOP_SECRET":      "TOP_SECRET",
			}),
			"fra": withCanonical(map[string]string{
				"NON_PROTEGE":         "UNCLASSIFIED",
				"DIFFUSION_RESTREINTE": "CONFIDENTIAL",
				"CONFIDENTIEL_DEFENSE": "CONFIDENTIAL",
				"SECRET_DEFENSE":       "SECRET",
				"TRES_SECRET_DEFENSE":  "TOP_SECRET",
			}),
			"deu": withCanonical(map[string]string{
				"OFFEN":           "UNCLASSIFIED",
				"VS-NFD":          "CONFIDENTIAL",
				"VS-VERTRAULICH":  "CONFIDENTIAL",
				"GEHEIM":          "SECRET",
				"STRENG_GEHEIM":   "TOP_SECRET",
			}),
			"esp": withCanonical(map[string]string{
				"DIFUSION_LIMITADA": "CONFIDENTIAL",
				"CONFIDENCIAL":      "CONFIDENTIAL",
				"RESERVADO":         "SECRET",
				"SECRETO":           "TOP_SECRET",
			}),
			"ita": withCanonical(map[string]string{
				"RISERVATO":      "CONFIDENTIAL",
				"RISERVATISSIMO": "CONFIDENTIAL",
				"SEGRETO":        "SECRET",
				"SEGRETISSIMO":   "TOP_SECRET",
			}),
			"nld": withCanonical(map[string]string{
				"DEP_VERTROUWELIJK": "CONFIDENTIAL",
				"STG_CONFIDENTIEEL": "CONFIDENTIAL",
				"STG_GEHEIM":        "SECRET",
				"STG_ZEER_GEHEIM":   "TOP_SECRET",
			}),
			"pol": withCanonical(map[string]string{
				"ZASTRZEZONE":  "CONFIDENTIAL",
				"POUFNE":       "CONFIDENTIAL",
				"TAJNE":        "SECRET",
				"SCISLE_TAJNE": "TOP_SECRET",
			}),
			// Industry partners assert canonical levels only.
			"industry": canonicalClearances(),
		},
	}
}

func canonicalClearances() map[string]string {
	return map[string]string{
		"UNCLASSIFIED": "UNCLASSIFIED",
		"CONFIDENTIAL": "CONFIDENTIAL",
		"SECRET":       "SECRET",
		"TOP_SECRET":   "TOP_SECRET",
	}
}

// withCanonical extends a partner table so canonical names always map to
// themselves. Partners that already emit canonical levels need no mapping.
func withCanonical(table map[string]string) map[string]string {
	for raw, canonical := range canonicalClearances() {
		if _, ok := table[raw]; !ok {
			table[raw] = canonical
		}
	}
	return table
}
