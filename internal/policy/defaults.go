package policy

// defaultIntervals holds the minimum seconds between two emitted changes for
// fields that change nearly every tick.
var defaultIntervals = map[string]int{
	"AirDensity":       15,
	"AirPressure":      15,
	"AirTemp":          15,
	"CarIdxRPM":        1,
	"FogLevel":         15,
	"FuelLevel":        1,
	"FuelLevelPct":     1,
	"FuelPress":        1,
	"FuelUsePerHour":   1,
	"ManifoldPress":    1,
	"OilPress":         1,
	"OilTemp":          15,
	"OilLevel":         1,
	"PitOptRepairLeft": 1,
	"PitRepairLeft":    1,
	"RelativeHumidity": 15,
	"SolarAltitude":    15,
	"SolarAzimuth":     15,
	"TrackTempCrew":    1,
	"Voltage":          1,
	"WaterTemp":        15,
	"WaterLevel":       1,
	"WindDir":          15,
	"WindVel":          15,
}

// defaultSuppressed lists fields kept out of the telemetry log. Most are
// recovered from replays anyway or only mean something in a live session.
var defaultSuppressed = []string{
	"Brake",
	"BrakeAbsActive",
	"BrakeRaw",
	"CamCameraNumber",
	"CamCameraState",
	"CamCarIdx",
	"CamGroupNumber",
	"CarIdxBestLapNum",
	"CarIdxBestLapTime",
	"CarIdxClass",
	"CarIdxClassPosition",
	"CarIdxEstTime",
	"CarIdxF2Time",
	"CarIdxGear",
	"CarIdxLap",
	"CarIdxLapCompleted",
	"CarIdxLapDistPct",
	"CarIdxLastLapTime",
	"CarIdxOnPitRoad",
	"CarIdxPosition",
	"CarIdxQualTireCompound",
	"CarIdxQualTireCompoundLocked",
	"CarIdxRPM",
	"CarIdxSteer",
	"CarIdxTireCompound",
	"CarIdxTrackSurface",
	"CarIdxTrackSurfaceMaterial",
	"ChanAvgLatency",
	"ChanClockSkew",
	"ChanLatency",
	"ChanPartnerQuality",
	"ChanQuality",
	"Clutch",
	"ClutchRaw",
	"CpuUsageBG",
	"CpuUsageFG",
	"CRshockDefl",
	"CRshockDefl_ST",
	"CRshockVel",
	"CRshockVel_ST",
	"DisplayUnits",
	"Engine0_RPM",
	"EnterExitReset",
	"FrameRate",
	"Gear",
	"GpuUsage",
	"HandbrakeRaw",
	"IsDiskLoggingActive",
	"IsDiskLoggingEnabled",
	"IsGarageVisible",
	"IsInGarage",
	"IsOnTrack",
	"IsOnTrackCar",
	"IsReplayPlaying",
	"Lap",
	"LapBestLap",
	"LapBestLapTime",
	"LapBestNLapLap",
	"LapBestNLapTime",
	"LapCompleted",
	"LapCurrentLapTime",
	"LapDeltaToBestLap",
	"LapDeltaToBestLap_DD",
	"LapDeltaToBestLap_OK",
	"LapDeltaToOptimalLap",
	"LapDeltaToOptimalLap_DD",
	"LapDeltaToOptimalLap_OK",
	"LapDeltaToSessionBestLap",
	"LapDeltaToSessionBestLap_DD",
	"LapDeltaToSessionBestLap_OK",
	"LapDeltaToSessionLastlLap",
	"LapDeltaToSessionLastlLap_DD",
	"LapDeltaToSessionLastlLap_OK",
	"LapDeltaToSessionOptimalLap",
	"LapDeltaToSessionOptimalLap_DD",
	"LapDeltaToSessionOptimalLap_OK",
	"LapDist",
	"LapDistPct",
	"LapLasNLapSeq",
	"LapLastLapTime",
	"LapLastNLapTime",
	"LatAccel",
	"LatAccel_ST",
	"LFbrakeLinePress",
	"LFshockDefl",
	"LFshockDefl_ST",
	"LFshockVel",
	"LFshockVel_ST",
	"LFSHshockDefl",
	"LFSHshockDefl_ST",
	"LFSHshockVel",
	"LFSHshockVel_ST",
	"LoadNumTextures",
	"LongAccel",
	"LongAccel_ST",
	"LRbrakeLinePress",
	"LRshockDefl",
	"LRshockDefl_ST",
	"LRshockVel",
	"LRshockVel_ST",
	"LRSHshockDefl",
	"LRSHshockDefl_ST",
	"LRSHshockVel",
	"LRSHshockVel_ST",
	"MemPageFaultSec",
	"MemSoftPageFaultSec",
	"OkToReloadTextures",
	"OnPitRoad",
	"Pitch",
	"PitchRate",
	"PitchRate_ST",
	"PlayerCarClass",
	"PlayerCarClassPosition",
	"PlayerCarIdx",
	"PlayerCarPosition",
	"PlayerFastRepairsUsed",
	"PlayerTireCompound",
	"PlayerTrackSurface",
	"PlayerTrackSurfaceMaterial",
	"PushToTalk",
	"RaceLaps",
	"RadioTransmitCarIdx",
	"ReplayFrameNum",
	"ReplayFrameNumEnd",
	"ReplayPlaySlowMotion",
	"ReplayPlaySpeed",
	"ReplaySessionNum",
	"ReplaySessionTime",
	"RFbrakeLinePress",
	"RFshockDefl",
	"RFshockDefl_ST",
	"RFshockVel",
	"RFshockVel_ST",
	"RFSHshockDefl",
	"RFSHshockDefl_ST",
	"RFSHshockVel",
	"RFSHshockVel_ST",
	"Roll",
	"RollRate",
	"RollRate_ST",
	"RPM",
	"RRbrakeLinePress",
	"RRshockDefl",
	"RRshockDefl_ST",
	"RRshockVel",
	"RRshockVel_ST",
	"RRSHshockDefl",
	"RRSHshockDefl_ST",
	"RRSHshockVel",
	"RRSHshockVel_ST",
	"SessionLapsRemain",
	"SessionLapsRemainEx",
	"SessionLapsTotal",
	"SessionNum",
	"SessionState",
	"SessionTick",
	"SessionTime",
	"SessionTimeOfDay",
	"SessionTimeRemain",
	"SessionTimeTotal",
	"SessionUniqueID",
	"ShiftGrindRpm",
	"ShiftIndicatorPct",
	"ShiftPowerPct",
	"Speed",
	"SteeringWheelAngle",
	"SteeringWheelAngleMax",
	"SteeringWheelLimiter",
	"SteeringWheelMaxForceNm",
	"SteeringWheelPeakForceNm",
	"SteeringWheelPctDamper",
	"SteeringWheelPctIntensity",
	"SteeringWheelPctSmoothing",
	"SteeringWheelPctTorque",
	"SteeringWheelPctTorqueSign",
	"SteeringWheelPctTorqueSignStops",
	"SteeringWheelTorque",
	"SteeringWheelTorque_ST",
	"SteeringWheelUseLinear",
	"Throttle",
	"ThrottleRaw",
	"TireLF_RumblePitch",
	"TireLR_RumblePitch",
	"TireRF_RumblePitch",
	"TireRR_RumblePitch",
	"TrackTemp",
	"VelocityX",
	"VelocityX_ST",
	"VelocityY",
	"VelocityY_ST",
	"VelocityZ",
	"VelocityZ_ST",
	"VertAccel",
	"VertAccel_ST",
	"VidCapActive",
	"VidCapEnabled",
	"Yaw",
	"YawNorth",
	"YawRate",
	"YawRate_ST",
}
