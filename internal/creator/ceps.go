package creator

// Origin distribution centers, code -> zip.
var warehouses = map[string]string{
	"01": "06612280",
	"02": "29164140",
	"03": "12209050",
	"04": "88706200",
}

// Destination pool: valid CEPs spread over every Brazilian state, capital
// and interior alike, so simulated shipments cover the whole country.
var destinationCEPs = []string{
	// AC
	"69900-062", "69908-750", "69930-000", "69980-000",
	// AL
	"57010-366", "57035-230", "57240-000", "57300-355",
	// AP
	"68900-073", "68903-419", "68925-000", "68950-000",
	// AM
	"69005-300", "69020-000", "69100-000", "69400-000",
	// BA
	"40020-056", "41720-020", "45600-000", "44001-205",
	// CE
	"60015-000", "60175-055", "62010-000", "63010-000",
	// DF
	"70040-906", "70200-001", "71571-000", "72300-501",
	// ES
	"29010-002", "29055-350", "29101-010", "29300-000",
	// GO
	"74013-010", "74215-220", "75020-010", "75701-010",
	// MA
	"65075-441", "65020-250", "65600-000", "65900-000",
	// MT
	"78020-400", "78048-000", "78550-000", "78700-000",
	// MS
	"79002-203", "79020-300", "79800-000", "79200-000",
	// MG
	"30180-110", "30310-000", "35500-000", "36010-000",
	// PA
	"66010-000", "66050-000", "68500-000", "68700-000",
	// PB
	"58013-120", "58038-101", "58400-000", "58100-000",
	// PR
	"80010-010", "80530-000", "86010-000", "87013-000",
	// PE
	"50030-230", "51020-000", "54510-000", "55002-000",
	// PI
	"64000-120", "64023-530", "64200-000", "64500-000",
	// RJ
	"20040-004", "22210-030", "28905-000", "27110-030",
	// RN
	"59012-300", "59040-000", "59600-000", "59500-000",
	// RS
	"90010-110", "90410-000", "96200-000", "97010-003",
	// RO
	"76801-054", "76812-321", "76900-000", "76940-000",
	// RR
	"69301-110", "69305-135", "69380-000", "69350-000",
	// SC
	"88010-001", "88034-001", "89010-000", "89201-000",
	// SP
	"01001-000", "01311-000", "11010-001", "13010-000",
	// SE
	"49010-020", "49025-100", "49400-000", "49900-000",
	// TO
	"77001-002", "77015-012", "77405-130", "77500-000",
}
