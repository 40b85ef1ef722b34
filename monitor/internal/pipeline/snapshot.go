package pipeline

// RubricResult итог балльной оценки по одной из шкал
type RubricResult struct {
	Total    int            `json:"total"`
	Category string         `json:"category"`
	Criteria map[string]int `json:"criteria"`
}

// Snapshot состояние классификаторов сессии на конец тика
type Snapshot struct {
	SessionID string `json:"session_id"`
	TimeSec   int    `json:"time_sec"`

	CurrentFHR    *float64 `json:"current_fhr"`
	CurrentUterus *float64 `json:"current_uterus"`

	MedianFHR10Min *float64 `json:"median_fhr_10min"`
	Tachycardia    string   `json:"tachycardia"`

	STV         *float64           `json:"stv"`
	STVForecast map[string]float64 `json:"stv_forecast"`

	HypoxiaProba     *float64 `json:"hypoxia_proba"`
	HypoxiaProbaEWMA *float64 `json:"hypoxia_proba_ewma"`

	FIGO        string        `json:"figo_situation,omitempty"`
	FIGOReasons []string      `json:"figo_reasons,omitempty"`
	Savelyeva   *RubricResult `json:"savelyeva"`
	Fischer     *RubricResult `json:"fischer"`

	AccelerationsCount int  `json:"accelerations_count"`
	DecelerationsCount int  `json:"decelerations_count"`
	ContractionsCount  int  `json:"contractions_count"`
	AccelerationActive bool `json:"acceleration_active"`
	DecelerationActive bool `json:"deceleration_active"`
	ContractionActive  bool `json:"contraction_active"`

	Events Events `json:"events"`

	CurrentStatus string `json:"current_status"`

	Notifications    map[int][]Notification `json:"notifications"`
	NewNotifications []Notification         `json:"new_notifications"`
}

// materialize копирует поля снимка из состояния
func (st *State) materialize(mark int) Snapshot {
	snap := st.Snap
	snap.SessionID = st.SessionID
	snap.TimeSec = st.Now

	if st.Snap.STVForecast != nil {
		snap.STVForecast = make(map[string]float64, len(st.Snap.STVForecast))
		for k, v := range st.Snap.STVForecast {
			snap.STVForecast[k] = v
		}
	}
	snap.FIGOReasons = append([]string(nil), st.Snap.FIGOReasons...)
	if st.Snap.Savelyeva != nil {
		r := st.Snap.Savelyeva.clone()
		snap.Savelyeva = &r
	}
	if st.Snap.Fischer != nil {
		r := st.Snap.Fischer.clone()
		snap.Fischer = &r
	}

	snap.AccelerationsCount = len(st.Events.Accelerations)
	snap.DecelerationsCount = len(st.Events.Decelerations)
	snap.ContractionsCount = len(st.Events.Contractions)
	snap.AccelerationActive = st.ActiveAcceleration != nil
	snap.DecelerationActive = st.ActiveDeceleration != nil
	snap.ContractionActive = st.ActiveContraction != nil
	snap.Events = st.Events.clone()

	snap.Notifications = st.Notifications.All()
	snap.NewNotifications = st.Notifications.Since(mark)
	return snap
}

func (r RubricResult) clone() RubricResult {
	c := RubricResult{Total: r.Total, Category: r.Category}
	if r.Criteria != nil {
		c.Criteria = make(map[string]int, len(r.Criteria))
		for k, v := range r.Criteria {
			c.Criteria[k] = v
		}
	}
	return c
}
