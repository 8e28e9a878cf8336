package normalizer

// fieldMapping standardizes the keys produced by NormalizeKey
var fieldMapping = map[string]string{
	"numero_de_ruc":                                       "ruc",
	"tipo_contribuyente":                                  "tipo_contribuyente",
	"tipo_de_documento":                                   "documento_identidad",
	"nombre_comercial":                                    "nombre_comercial",
	"fecha_de_inscripcion":                                "fecha_inscripcion",
	"estado_del_contribuyente":                            "estado",
	"condicion_del_contribuyente":                         "condicion",
	"domicilio_fiscal":                                    "domicilio_fiscal",
	"sistema_emision_de_comprobante":                      "sistema_emision_comprobante",
	"sistema_contabilidad":                                "sistema_contabilidad",
	"actividades_economicas":                              "actividad_economica",
	"actividad_es_economica_s":                            "actividad_economica",
	"comprobantes_de_pago_c_aut_de_impresion_f_806_u_816": "comprobantes_autorizados",
	"comprobantes_de_pago_caut_de_impresion_f_806_u_816":  "comprobantes_autorizados",
	"sistema_de_emision_electronica":                      "emision_electronica",
	"emisor_electronico_desde":                            "emisor_electronico_desde",
	"comprobantes_electronicos":                           "comprobantes_electronicos",
	"afiliado_al_ple_desde":                               "afiliado_ple_desde",
	"padrones":                                            "padrones",
}

// MapKey returns the canonical name for a normalized key, or the key itself when unknown
func MapKey(key string) string {
	if mapped, ok := fieldMapping[key]; ok {
		return mapped
	}
	return key
}
