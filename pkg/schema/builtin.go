package schema

// Builtin schemas for service information pages. They are built once and
// shared by reference.
var (
	// Cost extracts the price of a service.
	Cost = MustNew("cost",
		"The cost a citizen pays for the service.",
		Field{
			Name:        "cost",
			Type:        TypeNumber,
			Description: "Cost of the service in euros. Only fill this in when the text states the amount in digits, otherwise use null.",
		},
		Field{
			Name:        "cost_string",
			Type:        TypeString,
			Description: "The cost of the service exactly as it is written in the text.",
		},
	)

	// Organisation extracts the government organisations mentioned in a text.
	Organisation = MustNew("organisation",
		"The Flemish government organisations involved in the service.",
		Field{
			Name:        "organisations_list",
			Type:        TypeStringList,
			Required:    true,
			Description: "Identify and list the full names of flemish government organizations mentioned in the text, and separately list their corresponding abbreviations.",
		},
		Field{
			Name:        "organisations_list_string",
			Type:        TypeStringList,
			Required:    true,
			Description: "The flemish government organizations exactly as they are mentioned in the text, for example \"Agentschap Wonen (AW)\".",
		},
	)
)
